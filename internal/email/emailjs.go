package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EmailJSSender posts template sends to the EmailJS REST API. Templates are
// managed in EmailJS and receive to_email and set_password_link.
type EmailJSSender struct {
	Endpoint                 string
	ServiceID                string
	PublicKey                string
	PrivateKey               string
	NewAccountTemplateID     string
	ForgotPasswordTemplateID string
	Client                   *http.Client
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	UserID         string            `json:"user_id"`
	TemplateID     string            `json:"template_id"`
	TemplateParams map[string]string `json:"template_params"`
	AccessToken    string            `json:"accessToken"`
}

func (s *EmailJSSender) SendNewAccount(ctx context.Context, m Message) error {
	return s.send(ctx, s.NewAccountTemplateID, m)
}

func (s *EmailJSSender) SendPasswordReset(ctx context.Context, m Message) error {
	return s.send(ctx, s.ForgotPasswordTemplateID, m)
}

func (s *EmailJSSender) send(ctx context.Context, templateID string, m Message) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:  s.ServiceID,
		UserID:     s.PublicKey,
		TemplateID: templateID,
		TemplateParams: map[string]string{
			"to_email":          m.To,
			"set_password_link": m.Link,
		},
		AccessToken: s.PrivateKey,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("emailjs: status %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}
	return nil
}
