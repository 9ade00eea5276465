package bridge

// Authenticated-call destinations are matched by literal path suffix. These
// four are the logical auth operations every authenticator honors; anything
// else is treated as an ordinary protected endpoint.
const (
	PathRequestCode = "/auth/email/request-code"
	PathVerifyCode  = "/auth/email/verify"
	PathEmailLogin  = "/auth/email/login"
	PathLogout      = "/auth/logout"
)
