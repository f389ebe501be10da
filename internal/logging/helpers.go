package logging

// Convenience wrappers for the hot categories. Each logs at Info level;
// the *Debug variants log at Debug level.

// Notebook logs an info message to the notebook category.
func Notebook(format string, args ...interface{}) {
	Get(CategoryNotebook).Info(format, args...)
}

// NotebookDebug logs a debug message to the notebook category.
func NotebookDebug(format string, args ...interface{}) {
	Get(CategoryNotebook).Debug(format, args...)
}

// Kernel logs an info message to the kernel category.
func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}

// KernelDebug logs a debug message to the kernel category.
func KernelDebug(format string, args ...interface{}) {
	Get(CategoryKernel).Debug(format, args...)
}

// Bridge logs an info message to the bridge category.
func Bridge(format string, args ...interface{}) {
	Get(CategoryBridge).Info(format, args...)
}

// BridgeDebug logs a debug message to the bridge category.
func BridgeDebug(format string, args ...interface{}) {
	Get(CategoryBridge).Debug(format, args...)
}

// Tools logs an info message to the tools category.
func Tools(format string, args ...interface{}) {
	Get(CategoryTools).Info(format, args...)
}

// ToolsDebug logs a debug message to the tools category.
func ToolsDebug(format string, args ...interface{}) {
	Get(CategoryTools).Debug(format, args...)
}

// Persist logs an info message to the persist category.
func Persist(format string, args ...interface{}) {
	Get(CategoryPersist).Info(format, args...)
}

// PersistDebug logs a debug message to the persist category.
func PersistDebug(format string, args ...interface{}) {
	Get(CategoryPersist).Debug(format, args...)
}

// Store logs an info message to the store category.
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs a debug message to the store category.
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}
