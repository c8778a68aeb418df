package construct

import (
	"crypto/md5"
	"encoding/hex"
	"slices"
	"strings"
	"unicode"
)

const (
	maxLogicalIDLength = 255
	hashLength         = 8

	// hiddenID is the conventional id of the primary resource of a higher level construct.
	// It is left out of the human readable part of logical ids.
	hiddenID = "Resource"

	// defaultID is the conventional id of a child that stands in for its parent.
	// It is left out of logical ids entirely.
	defaultID = "Default"
)

// makeUniqueID derives a template logical id from the path components below a stack.
func makeUniqueID(components []string) string {
	components = slices.DeleteFunc(slices.Clone(components), func(c string) bool {
		return c == defaultID
	})

	if len(components) == 1 {
		if candidate := removeNonAlphanumeric(components[0]); len(candidate) <= maxLogicalIDLength {
			return candidate
		}
	}

	sum := md5.Sum([]byte(strings.Join(components, PathSeparator)))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))[:hashLength]

	var human strings.Builder
	for _, c := range slices.Compact(components) {
		if c == hiddenID {
			continue
		}
		human.WriteString(removeNonAlphanumeric(c))
	}

	h := human.String()
	if len(h) > maxLogicalIDLength-hashLength {
		h = h[:maxLogicalIDLength-hashLength]
	}

	return h + hash
}

func removeNonAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}

// pathBelow returns the path components from below stack down to n.
func pathBelow(stack *Stack, n *Node) []string {
	var components []string
	for cur := n; cur != nil && cur != stack.Node(); cur = cur.scope {
		components = append(components, cur.id)
	}
	slices.Reverse(components)
	return components
}
