package common

// Key codes delivered by window key callbacks.
// Printable keys use their ASCII values, matching GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyE     = 69  // E key, enable toggle
	KeyMinus = 45  // - key, decrease epsilon
	KeyEqual = 61  // = key, increase epsilon
	KeyEsc   = 256 // Escape key (GLFW)

	Key1 = 49 // 1 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)
