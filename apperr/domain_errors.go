package apperr

var (
	ErrEmptyName         = Validation("display name cannot be empty")
	ErrNameTooLong       = Validation("display name is too long")
	ErrBioTooLong        = Validation("bio is too long")
	ErrAvatarTooLarge    = Validation("avatar is too large")
	ErrEmptyMessage      = Validation("message text cannot be empty")
	ErrMessageTooLong    = Validation("message text is too long")
	ErrUserNotFound      = NotFound("user not found")
	ErrRequesterNotFound = NotFound("requester not found")
	ErrTargetNotFound    = NotFound("target user not found")
	ErrRecipientNotFound = NotFound("recipient not found")
	ErrSelfFriend        = SelfReference("cannot add yourself as a friend")
	ErrAlreadyFriends    = AlreadyExists("user is already in the friend list")
	ErrNotIdentified     = Unauthenticated("connection is not identified")
	ErrConnectionClosed  = Unauthenticated("connection is closed")
	ErrSenderMismatch    = Forbidden("sender does not match the identified user")
	ErrAlreadyIdentified = Forbidden("connection is already identified as another user")
)
