package api

import "context"

// UserDetails fetches the caller's account and profile.
func (c *Client) UserDetails(ctx context.Context) (*UserDetails, error) {
	var out UserDetails
	if err := c.do(ctx, epUserDetails, c.target(epUserDetails, nil, nil), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile patches the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, epUpdateProfile, c.target(epUpdateProfile, nil, nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser deletes the caller's account.
func (c *Client) DeleteUser(ctx context.Context) error {
	return c.do(ctx, epDeleteUser, c.target(epDeleteUser, nil, nil), nil, nil)
}
