package service

import "golang.org/x/crypto/bcrypt"

// hashPassword хеширует пароль bcrypt-ом, подмешивая перец из конфигурации.
func hashPassword(password, pepper string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password+pepper), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// checkPasswordHash проверяет пароль против сохраненного bcrypt-хеша.
func checkPasswordHash(password, pepper, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password+pepper)) == nil
}
