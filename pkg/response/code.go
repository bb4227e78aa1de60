package response

// Business status codes.
const (
	CodeSuccess = 0
	CodeError   = 1

	// account module errors 100xx
	ErrUserExists   = 10001
	ErrUserNotFound = 10002
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// promo module errors 200xx
	ErrPromoNotFound   = 20001
	ErrPromoOutOfStock = 20002
	ErrPromoRedeemed   = 20003
	ErrPromoExpired    = 20004

	// billing module errors 300xx
	ErrUnknownPlan      = 30001
	ErrGatewayNotReady  = 30002
	ErrGatewayTransport = 30003
	ErrOrderNotFound    = 30004
	ErrNoRecurringToken = 30005

	// system errors 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
