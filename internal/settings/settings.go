// Package settings holds the admin-editable application settings and the
// set of deactivated users.  Both are display-only: nothing in the
// request path enforces them.
package settings

import (
	"context"
	"encoding/json"
)

type General struct {
	AppName           string `json:"appName"`
	MaintenanceMode   bool   `json:"maintenanceMode"`
	AllowRegistration bool   `json:"allowRegistration"`
	MaxScansPerUser   int    `json:"maxScansPerUser"`
}

type Model struct {
	ConfidenceThreshold int    `json:"confidenceThreshold"`
	ModelVersion        string `json:"modelVersion"`
	EnableAutoUpdate    bool   `json:"enableAutoUpdate"`
	JupyterNotebookURL  string `json:"jupyterNotebookUrl"`
}

type Notifications struct {
	EmailNotifications bool   `json:"emailNotifications"`
	NewUserAlert       bool   `json:"newUserAlert"`
	ErrorAlert         bool   `json:"errorAlert"`
	WeeklyReport       bool   `json:"weeklyReport"`
	AdminEmail         string `json:"adminEmail"`
}

type Security struct {
	RequireEmailVerification bool `json:"requireEmailVerification"`
	SessionTimeout           int  `json:"sessionTimeout"`
	MaxLoginAttempts         int  `json:"maxLoginAttempts"`
	EnableTwoFactor          bool `json:"enableTwoFactor"`
}

// All is the full settings document shown on the admin settings page.
type All struct {
	General       General       `json:"general"`
	Model         Model         `json:"model"`
	Notifications Notifications `json:"notifications"`
	Security      Security      `json:"security"`
}

// Defaults returns the settings used until an admin saves new ones.
func Defaults() All {
	return All{
		General: General{
			AppName:           "Fern Classifier",
			AllowRegistration: true,
			MaxScansPerUser:   100,
		},
		Model: Model{
			ConfidenceThreshold: 85,
			ModelVersion:        "v2.1.0",
			EnableAutoUpdate:    true,
			JupyterNotebookURL:  "https://colab.research.google.com/your-notebook",
		},
		Notifications: Notifications{
			EmailNotifications: true,
			NewUserAlert:       true,
			ErrorAlert:         true,
			WeeklyReport:       true,
			AdminEmail:         "admin@fernclassifier.com",
		},
		Security: Security{
			RequireEmailVerification: true,
			SessionTimeout:           30,
			MaxLoginAttempts:         5,
		},
	}
}

// Merge decodes a partial JSON document over cur.  Sections and fields
// absent from patch keep their current values.
func Merge(cur All, patch []byte) (All, error) {
	if err := json.Unmarshal(patch, &cur); err != nil {
		return All{}, err
	}
	return cur, nil
}

// Store persists settings and the deactivated-user set.
type Store interface {
	Load(ctx context.Context) (All, error)
	Save(ctx context.Context, s All) error
	SetDeactivated(ctx context.Context, userID string, off bool) error
	Deactivated(ctx context.Context) (map[string]bool, error)
}
