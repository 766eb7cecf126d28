package ipc

// Pipe is a unidirectional byte-stream wrapper over a Port, offered to emulate POSIX-style
// read/write semantics for ported user code, matching ipc/pipe/pipe.rs: NewPipe returns a reader
// and a writer sharing one underlying port rather than exposing the port itself.
type Pipe struct{}

// PipeReader is the receiving half of a pipe.
type PipeReader struct {
	port *Port
}

// PipeWriter is the sending half of a pipe.
type PipeWriter struct {
	port *Port
}

// NewPipe creates a connected reader/writer pair backed by a port of DefaultPortCapacity.
func NewPipe() (*PipeReader, *PipeWriter) {
	port := NewPort(DefaultPortCapacity)

	return &PipeReader{port: port}, &PipeWriter{port: port}
}

// Read blocks until a message is available and returns it.
func (r *PipeReader) Read() (Message, error) {
	return r.port.Recv(false, nil)
}

// TryRead returns immediately with ErrNoMessage if the pipe is empty.
func (r *PipeReader) TryRead() (Message, error) {
	return r.port.Recv(true, nil)
}

// Write blocks until there is room in the pipe's buffer.
func (w *PipeWriter) Write(msg Message) error {
	return w.port.Send(msg, false, nil)
}
