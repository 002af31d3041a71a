// Package contentstore wraps the kubo RPC API as the content-addressed
// store for milestone metadata and images. Fetch failures and timeouts are
// reported as "data temporarily unavailable", never as "data invalid".
package contentstore

import (
	"bytes"
	"context"
	"io"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

// Store is the interface workflows depend on. Satisfied by Client and by
// test fakes.
type Store interface {
	AddBytes(ctx context.Context, data []byte) (string, error)
	Fetch(ctx context.Context, cid string) ([]byte, error)
	Remove(ctx context.Context, cid string) error
}

// Client talks to a kubo node over its HTTP RPC API.
type Client struct {
	sh           *shell.Shell
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// New creates a content store client. url is the kubo RPC endpoint, e.g.
// "127.0.0.1:5001".
func New(url string, fetchTimeout time.Duration, log zerolog.Logger) *Client {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Client{
		sh:           shell.NewShell(url),
		fetchTimeout: fetchTimeout,
		logger:       logger.Component(log, "contentstore"),
	}
}

// AddBytes stores and pins a blob, returning its CID.
func (c *Client) AddBytes(ctx context.Context, data []byte) (string, error) {
	cid, err := c.sh.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return "", errors.New(errors.CodeContentStoreTimeout, "content store unavailable").WithCause(err)
	}
	c.logger.Debug().Str("cid", cid).Int("size", len(data)).Msg("content added")
	return cid, nil
}

// Fetch retrieves a blob by CID with a bounded timeout. A timeout means the
// data is temporarily unavailable; it says nothing about validity.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.sh.Request("cat", cid).Send(fetchCtx)
	if err != nil {
		return nil, errors.New(errors.CodeContentStoreTimeout, "content temporarily unavailable").WithCause(err)
	}
	defer resp.Close()
	if resp.Error != nil {
		return nil, errors.New(errors.CodeContentStoreTimeout, "content temporarily unavailable").WithCause(resp.Error)
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, errors.New(errors.CodeContentStoreTimeout, "content read interrupted").WithCause(err)
	}
	return data, nil
}

// Remove unpins a CID and removes its block. Best effort: compensation for
// a failed workflow must not itself fail the response, so errors are logged
// and returned but callers typically ignore them.
func (c *Client) Remove(ctx context.Context, cid string) error {
	if cid == "" {
		return nil
	}

	if err := c.sh.Unpin(cid); err != nil {
		c.logger.Warn().Err(err).Str("cid", cid).Msg("unpin failed")
	}

	resp, err := c.sh.Request("block/rm", cid).Send(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("cid", cid).Msg("block removal failed")
		return errors.New(errors.CodeContentStoreTimeout, "content removal failed").WithCause(err)
	}
	defer resp.Close()
	if resp.Error != nil {
		c.logger.Warn().Err(resp.Error).Str("cid", cid).Msg("block removal rejected")
		return errors.New(errors.CodeContentStoreTimeout, "content removal rejected").WithCause(resp.Error)
	}

	c.logger.Debug().Str("cid", cid).Msg("content removed")
	return nil
}
