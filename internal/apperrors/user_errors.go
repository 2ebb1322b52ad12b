package apperrors

var (
	ErrInvalidEmail       = InvalidArg("Invalid email format")
	ErrInvalidUsername    = InvalidArg("Username must be 3-20 characters, alphanumeric and underscores only")
	ErrPasswordTooShort   = InvalidArg("Password must be at least 6 characters")
	ErrMissingSignUpField = InvalidArg("Email, username, and password are required")
	ErrEmailTaken         = AlreadyExists("Email already registered")
	ErrUsernameTaken      = AlreadyExists("Username already taken")
	ErrInvalidCredentials = Unauthorized("Invalid credentials")

	ErrContactIDRequired = InvalidArg("Contact ID required")
	ErrSelfContact       = InvalidArg("Cannot add yourself as a contact")
	ErrAlreadyContact    = AlreadyExists("Already in contacts")
	ErrUserNotFound      = NotFound("User not found")
	ErrNotAContact       = NotFound("Not in contacts")

	ErrUsernameRequired = InvalidArg("Username query parameter required")

	ErrRoomIDRequired     = InvalidArg("Room ID required")
	ErrRoomAccessDenied   = Forbidden("Access denied to this chat")
	ErrMessageFieldsEmpty = InvalidArg("Recipient ID and content are required")
	ErrMessageTooLong     = InvalidArg("Message too long (max 2000 characters)")
	ErrNotContacts        = Forbidden("Can only message contacts")
	ErrEditFieldsEmpty    = InvalidArg("Room ID, message ID, timestamp and content are required")
	ErrDeleteFieldsEmpty  = InvalidArg("Room ID, message ID and timestamp are required")
	ErrNotMessageSender   = Forbidden("Only the sender can change this message")
	ErrMessageNotFound    = NotFound("Message not found")

	ErrInvalidChannel      = InvalidArg("Unknown channel")
	ErrChannelAccessDenied = Forbidden("Access denied to this channel")

	ErrAvatarStorageDisabled = Unavailable("Avatar storage is not configured")
	ErrInvalidAvatarType     = InvalidArg("Avatar must be an image")
	ErrAvatarNotUploaded     = InvalidArg("Avatar upload not found")

	ErrTooManyRequests = RateLimited("Too many requests, try again later")
)
