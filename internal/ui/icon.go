package ui

// 16x16 PNG filmstrip mark shown in the system tray.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x29, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0xf0, 0x77, 0x7b, 0xfa,
	0x9f, 0x12, 0xcc, 0x00, 0x22, 0xbe, 0x7e, 0xfd, 0x0a, 0xc6, 0xc4, 0x6a,
	0x42, 0x56, 0x4f, 0x1d, 0x03, 0x28, 0xf6, 0xc2, 0x68, 0x18, 0x8c, 0x86,
	0xc1, 0x68, 0x18, 0xfc, 0x07, 0x00, 0x93, 0x31, 0xa5, 0xbf, 0xa8, 0x9a,
	0xfb, 0x6b, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42,
	0x60, 0x82,
}
