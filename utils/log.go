package utils

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ToZeroLogArray renders each element with its String method, e.g. the MAC addresses
// put on the adapter allow-list. Empty renderings (a nil net.HardwareAddr) are skipped.
func ToZeroLogArray[T fmt.Stringer](elems []T) *zerolog.Array {
	arr := zerolog.Arr()

	for _, elem := range elems {
		if s := elem.String(); s != "" {
			arr = arr.Str(s)
		}
	}

	return arr
}
