package models

// StatusCancelled is terminal and reachable from any workflow status.
const StatusCancelled = "Cancelled"

// WorkflowStatus is one entry of the tenant-configurable ordered status
// list, with its progress percentage and default sub-status checklist.
type WorkflowStatus struct {
	Name        string   `bson:"name" json:"name"`
	Progress    int      `bson:"progress" json:"progress"`
	SubStatuses []string `bson:"sub_statuses" json:"sub_statuses"`
}

// WorkflowConfig is the tenant's ordered status pipeline.
type WorkflowConfig struct {
	Statuses []WorkflowStatus `bson:"statuses" json:"statuses"`
}

// DefaultWorkflowConfig is used until the tenant customizes the pipeline.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Statuses: []WorkflowStatus{
			{Name: "Preparation", Progress: 0, SubStatuses: []string{"Moodboard ready", "Schedule agreed"}},
			{Name: "Confirmed", Progress: 10, SubStatuses: []string{"Contract signed", "Deposit received"}},
			{Name: "Editing", Progress: 40, SubStatuses: []string{"Culling done", "Preview shared"}},
			{Name: "Revision", Progress: 60, SubStatuses: []string{"Revision notes received", "Revision applied"}},
			{Name: "Print", Progress: 75, SubStatuses: []string{"Album approved", "Sent to print"}},
			{Name: "Shipped", Progress: 90, SubStatuses: []string{"Tracking shared"}},
			{Name: "Completed", Progress: 100, SubStatuses: nil},
		},
	}
}

// Find returns the configured status entry by name, or nil.
func (c WorkflowConfig) Find(name string) *WorkflowStatus {
	for i := range c.Statuses {
		if c.Statuses[i].Name == name {
			return &c.Statuses[i]
		}
	}
	return nil
}

// ProgressFor returns the progress percentage for a status. Cancelled and
// unknown statuses map to 0.
func (c WorkflowConfig) ProgressFor(name string) int {
	if s := c.Find(name); s != nil {
		return s.Progress
	}
	return 0
}

// ChecklistFor returns the sub-status checklist for a status, honoring a
// per-project override when present.
func (c WorkflowConfig) ChecklistFor(name string, override map[string][]string) []string {
	if override != nil {
		if list, ok := override[name]; ok {
			return list
		}
	}
	if s := c.Find(name); s != nil {
		return s.SubStatuses
	}
	return nil
}

// ValidStatus reports whether the name is a configured status or Cancelled.
func (c WorkflowConfig) ValidStatus(name string) bool {
	return name == StatusCancelled || c.Find(name) != nil
}
