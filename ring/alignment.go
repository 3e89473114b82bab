package ring

// IsPowerOfTwo reports whether n is a power of two. Zero and negative
// numbers are not.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// RoundUpToAlignment rounds n up to the nearest multiple of alignment,
// which must be a power of two. Used by the ring to size every frame to a
// multiple of its configured frame alignment.
func RoundUpToAlignment(n, alignment int) int {
	mask := alignment - 1
	return (n + mask) &^ mask
}
