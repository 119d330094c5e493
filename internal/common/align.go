package common

// AlignUp rounds x up to a multiple of a. An alignment of zero leaves x as is.
func AlignUp(x, a uint64) uint64 {
	if a == 0 {
		return x
	}
	if r := x % a; r != 0 {
		return x + (a - r)
	}
	return x
}

// Sectors returns how many sectors of size ss are needed to hold n bytes.
func Sectors(n, ss uint64) uint64 {
	if ss == 0 {
		return 0
	}
	return AlignUp(n, ss) / ss
}
