package slices

// Union returns the elements of existing followed by the elements of additional that are not yet present.
// Duplicates within either input are dropped as well; the order of first occurrence is kept.
func Union[T comparable](existing []T, additional []T) []T {
	seen := make(map[T]struct{}, len(existing)+len(additional))
	var result []T
	for _, list := range [][]T{existing, additional} {
		for _, value := range list {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			result = append(result, value)
		}
	}
	return result
}
