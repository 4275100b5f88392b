package crypto

// Sealer defines the interface for whole-file password encryption.
type Sealer interface {
	// Seal encrypts inputPath into outputPath as salt ‖ token.
	Seal(inputPath, outputPath, password string) error

	// Unseal verifies and decrypts a sealed file.
	Unseal(inputPath, outputPath, password string) error
}

var _ Sealer = (*Codec)(nil)
