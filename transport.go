package userpool

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const (
	contentTypeAmzJSON = "application/x-amz-json-1.1"
	headerAmzTarget    = "X-Amz-Target"
	servicePrefix      = "AWSCognitoIdentityProviderService"
)

// Action names the provider operations the client issues.
type Action string

const (
	ActionInitiateAuth           Action = "InitiateAuth"
	ActionSignUp                 Action = "SignUp"
	ActionConfirmSignUp          Action = "ConfirmSignUp"
	ActionRespondToAuthChallenge Action = "RespondToAuthChallenge"
	ActionGlobalSignOut          Action = "GlobalSignOut"
	ActionForgotPassword         Action = "ForgotPassword"
	ActionConfirmForgotPassword  Action = "ConfirmForgotPassword"
)

// Auth flows used with InitiateAuth.
const (
	authFlowUserPassword = "USER_PASSWORD_AUTH"
	authFlowRefreshToken = "REFRESH_TOKEN_AUTH"
)

// Transport issues action-targeted JSON posts to the pool endpoint. It makes
// exactly one attempt per call; callers that need resilience retry themselves.
type Transport struct {
	endpoint   string
	httpClient *http.Client
	logger     Logger
}

func newTransport(cfg Config, logger Logger) *Transport {
	return &Transport{
		endpoint:   cfg.endpointURL(),
		httpClient: cfg.httpClient(),
		logger:     logger,
	}
}

// Call posts payload under the given action and decodes the response into
// out when out is non-nil. Non-2xx responses become provider errors carrying
// the pool's machine readable code; everything below that layer surfaces as
// a transport error wrapping the cause.
func (t *Transport) Call(ctx context.Context, action Action, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return transportError(err, "failed to encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return transportError(err, "failed to build request")
	}
	req.Header.Set("Content-Type", contentTypeAmzJSON)
	req.Header.Set(headerAmzTarget, servicePrefix+"."+string(action))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transportError(err, "user pool request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, message := decodeProviderFailure(raw)
		t.logger.Debug("pool rejected %s: %s (%s)", action, message, code)
		return providerError(code, message, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return transportError(err, "failed to decode response body")
	}

	return nil
}

// decodeProviderFailure pulls the provider error code and message out of a
// non-success response. The code sometimes arrives fully qualified
// ("com.example.service#NotAuthorizedException"); only the fragment after
// the hash identifies the condition.
func decodeProviderFailure(raw []byte) (code, message string) {
	var body struct {
		Type     string `json:"__type"`
		Message  string `json:"message"`
		MessageC string `json:"Message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", strings.TrimSpace(string(raw))
	}

	code = body.Type
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}

	message = body.Message
	if message == "" {
		message = body.MessageC
	}
	return code, message
}

// Request payloads. Field names follow the wire format, hence the JSON tags
// mirroring the provider's PascalCase/SCREAMING parameter names.

type initiateAuthInput struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type signUpInput struct {
	ClientID       string          `json:"ClientId"`
	Username       string          `json:"Username"`
	Password       string          `json:"Password"`
	SecretHash     string          `json:"SecretHash,omitempty"`
	UserAttributes []userAttribute `json:"UserAttributes,omitempty"`
}

type userAttribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type confirmSignUpInput struct {
	ClientID         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	SecretHash       string `json:"SecretHash,omitempty"`
}

type respondToChallengeInput struct {
	ClientID           string            `json:"ClientId"`
	ChallengeName      string            `json:"ChallengeName"`
	Session            string            `json:"Session,omitempty"`
	ChallengeResponses map[string]string `json:"ChallengeResponses"`
}

type globalSignOutInput struct {
	AccessToken string `json:"AccessToken"`
}

type forgotPasswordInput struct {
	ClientID   string `json:"ClientId"`
	Username   string `json:"Username"`
	SecretHash string `json:"SecretHash,omitempty"`
}

type confirmForgotPasswordInput struct {
	ClientID         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	Password         string `json:"Password"`
	SecretHash       string `json:"SecretHash,omitempty"`
}

// Response payloads.

type authenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

type initiateAuthOutput struct {
	AuthenticationResult *authenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
	Session              string                `json:"Session"`
	ChallengeParameters  map[string]string     `json:"ChallengeParameters"`
}

type signUpOutput struct {
	UserSub             string               `json:"UserSub"`
	UserConfirmed       bool                 `json:"UserConfirmed"`
	CodeDeliveryDetails *codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

type codeDeliveryDetails struct {
	Destination    string `json:"Destination"`
	DeliveryMedium string `json:"DeliveryMedium"`
	AttributeName  string `json:"AttributeName"`
}

type forgotPasswordOutput struct {
	CodeDeliveryDetails *codeDeliveryDetails `json:"CodeDeliveryDetails"`
}
