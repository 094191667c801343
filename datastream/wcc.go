package datastream

// WCC is the Write Control Character following W/EW/EWA (spec.md §4.5),
// bit layout per IBM GA23-0059 Figure 2-8.
type WCC byte

const (
	WCCResetPartition WCC = 1 << 6
	WCCStartPrinter   WCC = 1 << 3
	WCCSoundAlarm     WCC = 1 << 2
	WCCKeyboardRestore WCC = 1 << 1
	WCCResetMDT       WCC = 1 << 0
)

func (w WCC) ResetPartition() bool  { return w&WCCResetPartition != 0 }
func (w WCC) StartPrinter() bool    { return w&WCCStartPrinter != 0 }
func (w WCC) SoundAlarm() bool      { return w&WCCSoundAlarm != 0 }
func (w WCC) KeyboardRestore() bool { return w&WCCKeyboardRestore != 0 }
func (w WCC) ResetMDT() bool        { return w&WCCResetMDT != 0 }
