package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/KeremAR/Microservice/pkg/apperr"

	kratos "github.com/ory/kratos-client-go"
)

const stateInactive = "inactive"

// KratosConfig points the adapter at a Kratos deployment.
type KratosConfig struct {
	AdminURL  string
	PublicURL string
	SchemaID  string
	Timeout   time.Duration
	// HTTPClient overrides the transport; nil uses a client bounded by
	// Timeout.
	HTTPClient *http.Client
}

// Kratos manages principals through the Kratos admin API and checks
// passwords through the public native login flow.
type Kratos struct {
	admin    *kratos.APIClient
	public   *kratos.APIClient
	schemaID string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewKratos(cfg KratosConfig, logger *slog.Logger) *Kratos {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.SchemaID == "" {
		cfg.SchemaID = "default"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Kratos{
		admin:    newAPIClient(cfg.AdminURL, httpClient),
		public:   newAPIClient(cfg.PublicURL, httpClient),
		schemaID: cfg.SchemaID,
		timeout:  cfg.Timeout,
		logger:   logger.With("component", "identity"),
	}
}

func newAPIClient(baseURL string, httpClient *http.Client) *kratos.APIClient {
	configuration := kratos.NewConfiguration()
	configuration.Servers = kratos.ServerConfigurations{{URL: baseURL}}
	configuration.HTTPClient = httpClient
	return kratos.NewAPIClient(configuration)
}

// CreatePrincipal creates a password identity. A taken email is reported as
// apperr.ErrIdentityEmailExists.
func (k *Kratos) CreatePrincipal(ctx context.Context, in NewPrincipal) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	traits := map[string]interface{}{"email": in.Email}
	if in.DisplayName != "" {
		traits["name"] = in.DisplayName
	}
	if in.Phone != "" {
		traits["phone"] = in.Phone
	}

	body := kratos.NewCreateIdentityBody(k.schemaID, traits)
	secret := in.Secret
	body.Credentials = &kratos.IdentityWithCredentials{
		Password: &kratos.IdentityWithCredentialsPassword{
			Config: &kratos.IdentityWithCredentialsPasswordConfig{Password: &secret},
		},
	}
	if in.ProfileID != "" {
		body.MetadataPublic = map[string]interface{}{"profile_id": in.ProfileID}
	}

	created, resp, err := k.admin.IdentityAPI.CreateIdentity(ctx).CreateIdentityBody(*body).Execute()
	if err != nil {
		if statusOf(resp) == http.StatusConflict {
			return nil, apperr.ErrIdentityEmailExists
		}
		return nil, k.upstream("create identity", resp, err)
	}

	k.logger.Info("identity created", "identity_id", created.Id)
	return toPrincipal(created), nil
}

// DeletePrincipal removes an identity. Deleting an unknown id is not an
// error.
func (k *Kratos) DeletePrincipal(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	resp, err := k.admin.IdentityAPI.DeleteIdentity(ctx, id).Execute()
	if err != nil && statusOf(resp) != http.StatusNotFound {
		return k.upstream("delete identity", resp, err)
	}
	return nil
}

func (k *Kratos) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	found, resp, err := k.admin.IdentityAPI.GetIdentity(ctx, id).Execute()
	if err != nil {
		switch statusOf(resp) {
		case http.StatusNotFound, http.StatusBadRequest:
			return nil, apperr.ErrNotFound
		}
		return nil, k.upstream("get identity", resp, err)
	}
	return toPrincipal(found), nil
}

func (k *Kratos) GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	found, resp, err := k.admin.IdentityAPI.ListIdentities(ctx).CredentialsIdentifier(email).Execute()
	if err != nil {
		return nil, k.upstream("list identities", resp, err)
	}
	if len(found) == 0 {
		return nil, apperr.ErrNotFound
	}
	return toPrincipal(&found[0]), nil
}

// VerifyCredentials runs a native password login and returns the principal
// on success.
func (k *Kratos) VerifyCredentials(ctx context.Context, email, secret string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	flow, resp, err := k.public.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return nil, k.upstream("create login flow", resp, err)
	}

	method := kratos.UpdateLoginFlowWithPasswordMethod{
		Identifier: email,
		Method:     "password",
		Password:   secret,
	}
	result, resp, err := k.public.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratos.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&method)).
		Execute()
	if err != nil {
		switch statusOf(resp) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return nil, apperr.ErrUnauthorized
		}
		return nil, k.upstream("submit login flow", resp, err)
	}

	identity := result.Session.GetIdentity()
	if identity.Id == "" {
		return nil, apperr.ErrUnauthorized
	}
	return toPrincipal(&identity), nil
}

func (k *Kratos) upstream(op string, resp *http.Response, err error) error {
	k.logger.Error("kratos call failed", "operation", op, "http_status", statusOf(resp), "error", err)
	return fmt.Errorf("kratos %s: %w", op, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func toPrincipal(i *kratos.Identity) *Principal {
	p := &Principal{
		ID:       i.Id,
		Disabled: i.GetState() == stateInactive,
	}

	if traits, ok := i.GetTraits().(map[string]interface{}); ok {
		p.Email = traitString(traits, "email")
		p.DisplayName = traitString(traits, "name")
		p.Phone = traitString(traits, "phone")
	}

	for provider := range i.GetCredentials() {
		p.Providers = append(p.Providers, provider)
	}
	sort.Strings(p.Providers)
	return p
}

func traitString(traits map[string]interface{}, key string) string {
	switch v := traits[key].(type) {
	case string:
		return v
	case map[string]interface{}:
		// {"name": {"first": "...", "last": "..."}} schemas
		first, _ := v["first"].(string)
		last, _ := v["last"].(string)
		if first != "" && last != "" {
			return first + " " + last
		}
		return first + last
	default:
		return ""
	}
}
