package sitesync

import "time"

type ResolveConflictRequest struct {
	Id         uint   `json:"id" binding:"required"`
	Resolution string `json:"resolution" binding:"required,oneof=keep_app keep_external dismiss"`
}

type AsyncSyncRequest struct {
	Source string `json:"source" binding:"required,oneof=quickbooks projects bids"`
}

// SourceStatus is one source's entry in the status response.
type SourceStatus struct {
	LastSyncedAt  string `json:"last_synced_at,omitempty"`
	RecordsSynced int    `json:"records_synced"`
}

type StatusResponse struct {
	QuickBooks       SourceStatus `json:"quickbooks"`
	Projects         SourceStatus `json:"projects"`
	Bids             SourceStatus `json:"bids"`
	PendingConflicts int64        `json:"pending_conflicts"`
}

type SyncPubSubPayload struct {
	Source string `json:"source"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
