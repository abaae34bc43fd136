package goSession

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/MrEthical07/goSession/pipeline"
	"github.com/go-playground/validator/v10"
)

// ProfileSource loads the signed-in user's profile.
type ProfileSource interface {
	FetchProfile(ctx context.Context) (UserProfile, error)
}

// ProfileSourceFunc adapts a function to ProfileSource.
type ProfileSourceFunc func(ctx context.Context) (UserProfile, error)

func (f ProfileSourceFunc) FetchProfile(ctx context.Context) (UserProfile, error) {
	return f(ctx)
}

// apiProfileSource reads the profile through the request pipeline so an
// expired access credential is renewed transparently.
type apiProfileSource struct {
	client *pipeline.Client
	path   string
}

func (s apiProfileSource) FetchProfile(ctx context.Context) (UserProfile, error) {
	var p UserProfile
	if err := s.client.Get(ctx, s.path, nil, &p); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// profileValidator checks issuer payloads with lazy initialization.
type profileValidator struct {
	once     sync.Once
	validate *validator.Validate
}

func (v *profileValidator) Validate(p UserProfile) error {
	v.lazyinit()
	if err := v.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(fields, ","))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

func (v *profileValidator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
