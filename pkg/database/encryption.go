package database

import (
	"github.com/firdasafridi/gocrypt"
)

// EncryptStruct encrypts the fields tagged with gocrypt using the provided
// secret key. An empty key disables encryption (tests, dev setups).
func EncryptStruct[T any](entity T, secretKey string) (T, error) {
	if secretKey == "" {
		return entity, nil
	}

	aesOpt, err := gocrypt.NewAESOpt(secretKey)
	if err != nil {
		return entity, err
	}

	gc := gocrypt.New(&gocrypt.Option{AESOpt: aesOpt})
	if err := gc.Encrypt(&entity); err != nil {
		return entity, err
	}
	return entity, nil
}

// DecryptStruct decrypts the fields tagged with gocrypt using the provided
// secret key.
func DecryptStruct[T any](entity T, secretKey string) (T, error) {
	if secretKey == "" {
		return entity, nil
	}

	aesOpt, err := gocrypt.NewAESOpt(secretKey)
	if err != nil {
		return entity, err
	}

	gc := gocrypt.New(&gocrypt.Option{AESOpt: aesOpt})
	if err := gc.Decrypt(&entity); err != nil {
		return entity, err
	}
	return entity, nil
}
