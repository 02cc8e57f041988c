// 文件路径: internal/cert/acme.go
// 模块说明: 这是 internal 模块里的 acme 逻辑，用 lego 完成 HTTP-01 标准签发。
package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strconv"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
)

// Issuer 对外部 ACME 客户端的唯一契约:域名+邮箱进,证书/私钥 PEM 出。
type Issuer interface {
	Obtain(domain, email string) (certPEM, keyPEM []byte, err error)
}

// LegoIssuer issues certificates through the ACME HTTP-01 standalone flow.
// A fresh account key is generated per session, so a retry after terminal
// failure always starts with a clean nonce/registration.
type LegoIssuer struct {
	DirectoryURL  string
	ChallengePort int
}

type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// Obtain 注册临时账户并签发 ECDSA P-256 证书。
func (i *LegoIssuer) Obtain(domain, email string) ([]byte, []byte, error) {
	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate account key: %w", err)
	}

	user := &acmeUser{email: email, key: accountKey}

	cfg := lego.NewConfig(user)
	if i.DirectoryURL != "" {
		cfg.CADirURL = i.DirectoryURL
	}
	cfg.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create acme client: %w", err)
	}

	port := i.ChallengePort
	if port == 0 {
		port = 80
	}
	provider := http01.NewProviderServer("", strconv.Itoa(port))
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return nil, nil, fmt.Errorf("configure http-01 provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, nil, fmt.Errorf("register account: %w", err)
	}
	user.registration = reg

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("obtain certificate: %w", err)
	}
	if len(res.Certificate) == 0 || len(res.PrivateKey) == 0 {
		return nil, nil, fmt.Errorf("empty certificate payload from CA")
	}
	return res.Certificate, res.PrivateKey, nil
}
