package hexdiv

// Close marks the instance closed. Subsequent operations return ErrClosed.
//
// The blobstore itself is not closed: it may be shared with other consumers
// (snapshot readers, a second instance at another prefix).
func (hd *Hexdiv) Close() error {
	if hd == nil {
		return nil
	}
	hd.closed.Store(true)
	return nil
}
