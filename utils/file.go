package utils

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// EnsureProofDir creates the local proofs directory if it doesn't exist.
// Used when no R2 bucket is configured and proofs are kept on disk.
func EnsureProofDir() error {
	return os.MkdirAll("proofs", os.ModePerm)
}

// SaveProofLocally writes an uploaded proof file under the proofs directory
// and returns the stored path.
func SaveProofLocally(fileHeader *multipart.FileHeader, filename string) (string, error) {
	destPath := filepath.Join("proofs", filename)

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return filepath.ToSlash(destPath), nil
}
