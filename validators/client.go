package validators

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/cache"
)

// ClientConfig configures the validator API client.
type ClientConfig struct {
	Endpoint  string
	Headers   map[string]string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration

	// optional shared cache tier
	RedisAddress string
	RedisPrefix  string
}

// Client fetches validators by withdrawal address from the validator API.
type Client struct {
	endpoint   string
	headers    map[string]string
	httpClient *nethttp.Client
	cache      *cache.TieredCache
	cacheTTL   time.Duration
	logger     logrus.FieldLogger
}

func NewClient(config ClientConfig, logger logrus.FieldLogger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("validator api endpoint not configured")
	}
	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, errors.Wrap(err, "invalid validator api endpoint")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		endpoint:   strings.TrimSuffix(config.Endpoint, "/"),
		headers:    config.Headers,
		httpClient: &nethttp.Client{Timeout: timeout},
		logger:     logger,
	}

	if config.CacheSize > 0 && config.CacheTTL >= time.Second {
		tieredCache, err := cache.NewTieredCache(context.Background(), config.CacheSize, config.RedisAddress, config.RedisPrefix, logger)
		if err != nil {
			return nil, errors.Wrap(err, "error initializing validator cache")
		}
		client.cache = tieredCache
		client.cacheTTL = config.CacheTTL
	}

	return client, nil
}

// Close releases the remote cache connection.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

// GetValidators returns the raw validator records owned by address.
func (c *Client) GetValidators(ctx context.Context, address common.Address) ([]*ValidatorResponse, error) {
	cacheKey := "validators:" + strings.ToLower(address.Hex())
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			data, err := snappy.Decode(nil, cached)
			if err == nil {
				return decodeValidators(data)
			}
			c.logger.WithError(err).Warnf("invalid cached validators of %v", address.Hex())
		} else if err != cache.ErrCacheMiss {
			c.logger.WithError(err).Warnf("validator cache lookup failed")
		}
	}

	requrl := fmt.Sprintf("%v/validators?address=%v", c.endpoint, address.Hex())
	data, err := c.getJSON(ctx, requrl)
	if err != nil {
		return nil, err
	}

	responses, err := decodeValidators(data)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		// entries are snappy compressed
		if err := c.cache.Set(ctx, cacheKey, snappy.Encode(nil, data), c.cacheTTL); err != nil {
			c.logger.WithError(err).Warnf("failed caching validators of %v", address.Hex())
		}
	}

	return responses, nil
}

// GetNormalizedValidators returns the validators owned by address in the dashboard model.
func (c *Client) GetNormalizedValidators(ctx context.Context, address common.Address) ([]*Validator, error) {
	responses, err := c.GetValidators(ctx, address)
	if err != nil {
		return nil, err
	}

	validators := make([]*Validator, 0, len(responses))
	for _, response := range responses {
		if validator := NormalizeResponse(response); validator != nil {
			validators = append(validators, validator)
		}
	}

	return validators, nil
}

func decodeValidators(data []byte) ([]*ValidatorResponse, error) {
	if len(data) == 0 {
		return []*ValidatorResponse{}, nil
	}

	responses := []*ValidatorResponse{}
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, errors.Wrap(err, "error parsing validator api response")
	}
	return responses, nil
}

// getJSON returns the response body, or nil for a 404 response.
func (c *Client) getJSON(ctx context.Context, requrl string) ([]byte, error) {
	logurl := requrl
	if urlData, err := url.Parse(requrl); err == nil {
		logurl = urlData.Redacted()
	}

	req, err := nethttp.NewRequestWithContext(ctx, "GET", requrl, nethttp.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	for headerKey, headerVal := range c.headers {
		req.Header.Set(headerKey, headerVal)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error requesting %v", logurl)
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusNotFound {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading response of %v", logurl)
	}

	if resp.StatusCode != nethttp.StatusOK {
		c.logger.Debugf("validator api error %v: %s", resp.StatusCode, data)
		return nil, fmt.Errorf("url: %v, error-response: %s", logurl, data)
	}

	return data, nil
}
