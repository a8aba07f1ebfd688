package utils

// UniqueStrings removes duplicates and blanks, keeping first-seen order.
func UniqueStrings(slice []string) []string {
	keys := make(map[string]bool, len(slice))
	list := make([]string, 0, len(slice))
	for _, entry := range slice {
		if entry == "" || keys[entry] {
			continue
		}
		keys[entry] = true
		list = append(list, entry)
	}
	return list
}

// ContainsString reports whether v is in slice.
func ContainsString(slice []string, v string) bool {
	for _, entry := range slice {
		if entry == v {
			return true
		}
	}
	return false
}

// ToggleMember removes v from the set when present and adds it otherwise.
// The result has no duplicates; present reports membership after the toggle.
func ToggleMember(set []string, v string) (out []string, present bool) {
	set = UniqueStrings(set)
	out = make([]string, 0, len(set)+1)
	for _, entry := range set {
		if entry == v {
			present = true
			continue
		}
		out = append(out, entry)
	}
	if present {
		return out, false
	}
	return append(out, v), true
}
