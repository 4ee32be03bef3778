package utils

import (
	"encoding/json"
)

// Remarshal converts between JSON compatible shapes going through an
// encode/decode round trip. Slow but safe.
func Remarshal(input interface{}, output interface{}) (err error) {
	b, err := json.Marshal(input)
	if nil != err {
		return
	}
	return json.Unmarshal(b, output)
}
