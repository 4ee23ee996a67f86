package ports

// PasswordHasher digests plaintext passwords and checks candidates
// against stored digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(digest, password string) bool
}
