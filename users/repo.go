package users

type UserRepo interface {
	// Create stores a new user and assigns its ID. It fails with errors.ErrEmailTaken
	// when the email is already registered.
	Create(user *User) error
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	List(offset, limit int) ([]*User, int, error)
	SetBlocked(email string, blocked bool) error
}
