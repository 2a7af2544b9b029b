package transport

// Backend endpoint paths.
const (
	EndpointLogin    = "/api/auth/login"
	EndpointRegister = "/api/auth/register"
	EndpointMe       = "/api/auth/me"
	EndpointRefresh  = "/api/auth/refresh"

	EndpointConversations = "/api/conversations/"
	EndpointChatMessage   = "/api/chat/message"
	EndpointChatHistory   = "/api/chat/history"
)
