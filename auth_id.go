// File: auth_id.go
// Author: momentics <momentics@gmail.com>
//
// externalAuthID produces the hex-encoded ASCII decimal uid the SASL
// EXTERNAL mechanism authenticates with (§4.2), i.e. hex(strconv.Itoa(uid)).
package dbus

import (
	"encoding/hex"
	"os"
	"strconv"
)

func externalAuthID() string {
	return hex.EncodeToString([]byte(strconv.Itoa(os.Getuid())))
}
