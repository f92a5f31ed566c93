package model

import (
	"encoding/json"
	"fmt"
)

// DeploymentType selects how the platform builds and serves a deployment
type DeploymentType string

const (
	TypeStatic DeploymentType = "static"
	TypeNPM    DeploymentType = "npm"
	TypeDocker DeploymentType = "docker"
)

// IsBuild reports whether the type is built on the platform (archive or container build)
func (t DeploymentType) IsBuild() bool {
	return t == TypeNPM || t == TypeDocker
}

// Scale holds the instance-count bounds for one region or datacenter
type Scale struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// EnvValue is a fully resolved environment value: either a literal string
// or a handle to a server-side secret.
type EnvValue struct {
	Literal   string
	SecretUID string
}

// Literal returns an EnvValue holding a plain string
func Literal(s string) EnvValue {
	return EnvValue{Literal: s}
}

// SecretRef returns an EnvValue pointing at the secret with the given uid
func SecretRef(uid string) EnvValue {
	return EnvValue{SecretUID: uid}
}

// IsSecret reports whether the value is a secret handle
func (v EnvValue) IsSecret() bool {
	return v.SecretUID != ""
}

// MarshalJSON encodes literals as strings and secrets as {"uid": ...}
func (v EnvValue) MarshalJSON() ([]byte, error) {
	if v.IsSecret() {
		return json.Marshal(struct {
			UID string `json:"uid"`
		}{v.SecretUID})
	}
	return json.Marshal(v.Literal)
}

func (v EnvValue) String() string {
	if v.IsSecret() {
		return fmt.Sprintf("secret(%s)", v.SecretUID)
	}
	return v.Literal
}

// File is one local file that belongs to a deployment
type File struct {
	Path string `json:"-"`    // absolute path on disk
	Name string `json:"file"` // path relative to the deployment root
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
	Mode uint32 `json:"mode,omitempty"`
}

// DeploymentRequest is the payload submitted to create a deployment.
// It is built once per attempt and not modified after submission.
type DeploymentRequest struct {
	Name            string              `json:"name" validate:"required"`
	Type            DeploymentType      `json:"deploymentType" validate:"required,oneof=static npm docker"`
	Files           []File              `json:"files"`
	Env             map[string]EnvValue `json:"env"`
	Scale           map[string]Scale    `json:"scale,omitempty"`
	SessionAffinity string              `json:"sessionAffinity,omitempty" validate:"omitempty,oneof=ip random"`
	ForceNew        bool                `json:"forceNew,omitempty"`
	Public          bool                `json:"public,omitempty"`
	ForwardNpm      bool                `json:"forwardNpm,omitempty"`
	Config          json.RawMessage     `json:"config,omitempty"`
}

// Deployment is the server's answer to a create request
type Deployment struct {
	ID      string           `json:"deploymentId"`
	URL     string           `json:"url"`
	Scale   map[string]Scale `json:"scale,omitempty"`
	Missing []string         `json:"missing,omitempty"`
}

// Secret is a named server-side value that env vars can reference with @name
type Secret struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Team is the scope a deployment is created under
type Team struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// User identifies the account that owns the token
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
