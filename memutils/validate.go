package memutils

// Validatable is implemented by allocators that can check their own bookkeeping. DebugValidate runs
// it after each operation that changes allocator state.
type Validatable interface {
	Validate() error
}
