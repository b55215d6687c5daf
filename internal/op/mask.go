package op

import "strings"

// maskKeep is how many leading and trailing characters survive masking.
const maskKeep = 3

// Mask irreversibly obscures a secret value while keeping enough of it
// for a human to recognize. Values of six characters or fewer are fully
// replaced; longer values keep their first and last three characters with
// the middle turned into asterisks. The result always has the original
// length, so nothing about the value beyond its length can be recovered
// from stored data.
func Mask(v string) string {
	if len(v) <= 2*maskKeep {
		return strings.Repeat("*", len(v))
	}
	return v[:maskKeep] + strings.Repeat("*", len(v)-2*maskKeep) + v[len(v)-maskKeep:]
}

// MaskItem returns a copy of item safe for persistence: every CONCEALED
// field value is masked and password metadata is stripped entirely.
func MaskItem(item Item) Item {
	if len(item.Fields) == 0 {
		return item
	}

	fields := make([]Field, 0, len(item.Fields))
	for _, f := range item.Fields {
		f.Entropy = 0
		f.PasswordDetails = nil
		if f.Type == FieldTypeConcealed {
			f.Value = Mask(f.Value)
		}
		fields = append(fields, f)
	}
	item.Fields = fields
	return item
}
