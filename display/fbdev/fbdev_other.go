//go:build !linux

package fbdev

// Open is only available on Linux.
func Open(_ string) (*Device, error) {
	return nil, ErrNotSupported
}
