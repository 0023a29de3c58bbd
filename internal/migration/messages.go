package migration

// Outcome messages shown to the user.
const (
	MsgDryRun     = "Testlauf"
	MsgExists     = "Bereits vorhanden"
	MsgNotFound   = "Nicht gefunden"
	MsgCancelled  = "Abgebrochen"
	MsgManualSkip = "Manuell übersprungen"
	MsgIncomplete = "Verarbeitung unterbrochen / Batch unvollständig"
)
