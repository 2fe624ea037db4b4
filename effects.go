package track

// Main pattern effects, 0x0..0x24 (FT2/XM numbering). Formats with a
// narrower effect set (MOD, S3M, STM) map their own codes onto this
// set at parse time so the tick processor has one dispatch table.
const (
	EffectArpeggio            = 0x00
	EffectPortaUp             = 0x01
	EffectPortaDown           = 0x02
	EffectPortaToNote         = 0x03
	EffectVibrato             = 0x04
	EffectPortaVolSlide       = 0x05
	EffectVibratoVolSlide     = 0x06
	EffectTremolo             = 0x07
	EffectSetPanning          = 0x08
	EffectSampleOffset        = 0x09
	EffectVolumeSlide         = 0x0A
	EffectJumpToPattern       = 0x0B
	EffectSetVolume           = 0x0C
	EffectPatternBreak        = 0x0D
	EffectExtended            = 0x0E
	EffectSetSpeed            = 0x0F
	EffectSetGlobalVolume     = 0x10
	EffectGlobalVolumeSlide   = 0x11
	EffectSetEnvelopePosition = 0x15
	EffectSetPanningSlide     = 0x19
	EffectMultiRetrig         = 0x1B
	EffectTremor              = 0x1D
	EffectPanningSlide        = 0x24 // Pxy, named separately from 0x19's XM slot in some trackers
	EffectPatternLoop         = 0x20 // E6x surfaces here once normalized from the extended sub-table
)

// Extended effects, the sub-table selected by EffectExtended (Exy).
const (
	ExtSetFilter        = 0x0
	ExtFinePortaUp       = 0x1
	ExtFinePortaDown     = 0x2
	ExtGlissandoControl  = 0x3
	ExtVibratoControl    = 0x4
	ExtSetFinetune       = 0x5
	ExtPatternLoop       = 0x6
	ExtTremoloControl    = 0x7
	ExtSetPanning        = 0x8
	ExtRetrigNote        = 0x9
	ExtFineVolSlideUp    = 0xA
	ExtFineVolSlideDown  = 0xB
	ExtNoteCut           = 0xC
	ExtNoteDelay         = 0xD
	ExtPatternDelay      = 0xE
)

// Volume column ranges (FT2/XM encoding).
const (
	VolNone            = 0x00
	VolSetVolumeLo     = 0x10
	VolSetVolumeHi     = 0x50
	VolFineVolSlideDn  = 0x80
	VolFineVolSlideUp  = 0x90
	VolVolSlideDown    = 0x60
	VolVolSlideUp      = 0x70
	VolVibratoDepth    = 0xB0
	VolSetPanning      = 0xC0
	VolPanSlideLeft    = 0xD0
	VolPanSlideRight   = 0xE0
	VolPortaToNote     = 0xF0
)

const NoteKeyOff = 97
