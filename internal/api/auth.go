package api

import "context"

// Login exchanges credentials for a token.  A 2xx without a token is a
// ServerError.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.do(ctx, epLogin, c.target(epLogin, nil, nil), body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Op: epLogin.op, Kind: ServerError, Detail: "The login response carried no token."}
	}
	return &out, nil
}

// Logout revokes the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, epLogout, c.target(epLogout, nil, nil), nil, nil)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.do(ctx, epRegister, c.target(epRegister, nil, nil), reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
