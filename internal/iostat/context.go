package iostat

import "time"

// Context is the latched parse state of one file: the last host identity
// and the last interval timestamp seen. It must not be shared between files.
type Context struct {
	Host      string
	Timestamp time.Time
}

// NewContext returns an empty context
func NewContext() *Context {
	return &Context{}
}

// SetHost latches the host identity
func (c *Context) SetHost(host string) {
	c.Host = host
}

// SetTimestamp latches the interval timestamp, stored in UTC
func (c *Context) SetTimestamp(ts time.Time) {
	c.Timestamp = ts.UTC()
}

// Ready reports whether both host and timestamp have been seen
func (c *Context) Ready() bool {
	return c.Host != "" && !c.Timestamp.IsZero()
}
