package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultServiceClient is the client identity used when none is configured.
const DefaultServiceClient = "bulkopsclient"

type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ClientRegistry hands out one authenticated *http.Client per service-client
// identity. Without a token URL the clients are unauthenticated.
type ClientRegistry struct {
	oauth   OAuth2Config
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client
}

func NewClientRegistry(oauth OAuth2Config, timeout time.Duration) *ClientRegistry {
	return &ClientRegistry{
		oauth:   oauth,
		timeout: timeout,
		clients: make(map[string]*http.Client),
	}
}

func (r *ClientRegistry) Client(serviceClient string) *http.Client {
	if serviceClient == "" {
		serviceClient = DefaultServiceClient
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[serviceClient]; ok {
		return c
	}

	base := &http.Client{Timeout: r.timeout}
	client := base
	if r.oauth.TokenURL != "" {
		clientID := r.oauth.ClientID
		if clientID == "" {
			clientID = serviceClient
		}
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: r.oauth.ClientSecret,
			TokenURL:     r.oauth.TokenURL,
			Scopes:       r.oauth.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(tokenCtx)
		client.Timeout = r.timeout
	}
	r.clients[serviceClient] = client
	return client
}
