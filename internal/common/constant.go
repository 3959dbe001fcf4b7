package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the Authorization scheme accepted by the API.
const BearerScheme = "Bearer"

// PasswordMinLength is the shortest password accepted at registration.
const PasswordMinLength = 8
