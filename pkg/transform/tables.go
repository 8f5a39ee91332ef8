package transform

import "genre-swap/pkg/models"

// rhythmGrid is a 16-step percussion pattern for one rhythm descriptor.
type rhythmGrid struct {
	TimeSignature string
	Steps         int
	Kick          []int
	Snare         []int
	Accent        []int
}

var defaultGrid = rhythmGrid{TimeSignature: "4/4", Steps: 16, Kick: []int{0, 8}, Snare: []int{4, 12}}

var rhythmGrids = map[string]rhythmGrid{
	"pop_4/4":                   {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 8}, Snare: []int{4, 12}, Accent: []int{0}},
	"4/4_straight":              {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 8}, Snare: []int{4, 12}},
	"traditional_nordic_meters": {TimeSignature: "3/4", Steps: 12, Kick: []int{0}, Snare: []int{5, 9}, Accent: []int{0, 5}},
	"afrobeat_12/8_polyrhythm":  {TimeSignature: "12/8", Steps: 12, Kick: []int{0, 7}, Snare: []int{3, 9}, Accent: []int{0, 2, 4, 5, 7, 9, 11}},
	"bossa_clave":               {TimeSignature: "2/4", Steps: 16, Kick: []int{0, 6, 8, 14}, Snare: []int{0, 3, 6, 10, 13}},
	"compas_12_beat":            {TimeSignature: "12/8", Steps: 12, Kick: []int{0}, Snare: []int{2, 5, 7, 9, 11}, Accent: []int{2, 5, 7, 9, 11}},
	"one_drop":                  {TimeSignature: "4/4", Steps: 16, Kick: []int{8}, Snare: []int{8}, Accent: []int{4, 12}},
	"chaal_dhol":                {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 3, 8, 11}, Snare: []int{4, 12}, Accent: []int{3, 11}},
	"colotomic_cycle":           {TimeSignature: "4/4", Steps: 16, Kick: []int{15}, Snare: []int{3, 7, 11}, Accent: []int{15}},
	"funk_16th":                 {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 3, 10}, Snare: []int{4, 12}, Accent: []int{0, 2, 4, 6, 8, 10, 12, 14}},
	"jig_6/8":                   {TimeSignature: "6/8", Steps: 12, Kick: []int{0, 6}, Snare: []int{3, 9}, Accent: []int{0, 3, 6, 9}},
	"son_clave_3_2":             {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 10}, Snare: []int{0, 3, 6, 10, 12}},
	"slowed_4/4":                {TimeSignature: "4/4", Steps: 16, Kick: []int{0}, Snare: []int{8}},
	"4/4_rock":                  {TimeSignature: "4/4", Steps: 16, Kick: []int{0, 6, 8}, Snare: []int{4, 12}},
}

// complexityDensity scales how many grid hits are rendered.
var complexityDensity = map[models.RhythmicComplexity]float64{
	models.ComplexitySimple:      0.5,
	models.ComplexityModerate:    0.75,
	models.ComplexityComplex:     1.0,
	models.ComplexityTraditional: 0.9,
}

// Instrument roles drive substitution: a detected instrument is replaced
// by the target profile's first instrument with the same role.
type role string

const (
	rolePercussion role = "percussion"
	roleLow        role = "low"
	roleHarmony    role = "harmony"
	roleLead       role = "lead"
	rolePad        role = "pad"
)

var instrumentRoles = map[string]role{
	// percussion
	"drums": rolePercussion, "drum_kit": rolePercussion, "drum_machine": rolePercussion,
	"percussion": rolePercussion, "hi_hat": rolePercussion, "frame_drum": rolePercussion,
	"talking_drum": rolePercussion, "shekere": rolePercussion, "brushed_kit": rolePercussion,
	"cajon": rolePercussion, "palmas": rolePercussion, "one_drop_kit": rolePercussion,
	"dhol": rolePercussion, "kendang": rolePercussion, "bodhran": rolePercussion,
	"bongos": rolePercussion, "claves": rolePercussion,

	// low end
	"bass": roleLow, "electric_bass": roleLow, "upright_bass": roleLow, "synth_bass": roleLow,
	"dub_bass": roleLow, "baby_bass": roleLow, "slap_bass": roleLow, "gong_ageng": roleLow,

	// harmony
	"guitar": roleHarmony, "acoustic_guitar": roleHarmony, "electric_guitar": roleHarmony,
	"piano": roleHarmony, "keys": roleHarmony, "rhodes": roleHarmony, "organ": roleHarmony,
	"nylon_guitar": roleHarmony, "highlife_guitar": roleHarmony, "flamenco_guitar": roleHarmony,
	"skank_guitar": roleHarmony, "funk_guitar": roleHarmony, "tres": roleHarmony,
	"bouzouki": roleHarmony, "kantele": roleHarmony, "celtic_harp": roleHarmony,
	"saron": roleHarmony, "bonang": roleHarmony, "gender": roleHarmony, "tumbi": roleHarmony,

	// lead
	"synth_lead": roleLead, "lead_guitar": roleLead, "violin": roleLead, "fiddle": roleLead,
	"hardanger_fiddle": roleLead, "nyckelharpa": roleLead, "flute": roleLead,
	"tin_whistle": roleLead, "trumpet": roleLead, "saxophone": roleLead,
	"horn_section": roleLead, "brass_section": roleLead, "sarangi": roleLead,
	"algoza": roleLead, "uilleann_pipes": roleLead,

	// pads
	"synth": rolePad, "synth_pad": rolePad, "strings": rolePad, "pad": rolePad,
}

// roleStem is the stem that carries each role.
var roleStem = map[role]models.StemName{
	rolePercussion: models.StemDrums,
	roleLow:        models.StemBass,
	roleHarmony:    models.StemOther,
	roleLead:       models.StemOther,
	rolePad:        models.StemOther,
}

// scaleIntervals are semitone steps from the root.
var scaleIntervals = map[string][]int{
	"major":             {0, 2, 4, 5, 7, 9, 11},
	"minor":             {0, 2, 3, 5, 7, 8, 10},
	"dorian":            {0, 2, 3, 5, 7, 9, 10},
	"mixolydian":        {0, 2, 4, 5, 7, 9, 10},
	"phrygian_dominant": {0, 1, 4, 5, 7, 8, 10},
	"pentatonic_minor":  {0, 3, 5, 7, 10},
	"pentatonic_major":  {0, 2, 4, 7, 9},
	"major_seventh":     {0, 4, 7, 11},
	"pelog":             {0, 1, 3, 7, 8},
	"slendro":           {0, 2, 5, 7, 9},
	"chromatic":         {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatAliases = map[string]string{"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#"}

// vocalPresets are full-intensity parameters per vocal-style tag. Booleans
// are encoded as 0 or 1.
var vocalPresets = map[string]map[string]float64{
	"idol_style":        {"autotune": 0.8, "brightness": 0.7, "harmonies": 1},
	"group_harmony":     {"harmonies": 1, "width": 0.6},
	"kulning":           {"reverb_send": 0.7, "air": 0.6},
	"ethereal":          {"reverb_send": 0.8, "brightness": 0.4},
	"call_and_response": {"doubling": 0.5, "pan_spread": 0.6},
	"whispered":         {"breath": 0.7, "compression": 0.5},
	"intimate":          {"proximity": 0.8, "reverb_send": 0.2},
	"cante_jondo":       {"grit": 0.6, "vibrato": 0.5},
	"melismatic":        {"pitch_glide": 0.7},
	"toasting":          {"delay_send": 0.5, "grit": 0.3},
	"relaxed":           {"compression": 0.3},
	"bolian_shouts":     {"doubling": 0.7, "brightness": 0.6},
	"ornamented":        {"pitch_glide": 0.5, "vibrato": 0.4},
	"smooth":            {"compression": 0.5, "brightness": 0.4},
	"sean_nos":          {"vibrato": 0.2, "reverb_send": 0.3},
	"montuno_soneo":     {"doubling": 0.4, "brightness": 0.5},
	"natural":           {"presence": 0.4},
	"pitched_down":      {"pitch_shift": -0.5, "formant": -0.3},
	"chopped":           {"gate": 0.6, "stutter": 0.4},
}

var genericVocalPreset = map[string]float64{"presence": 0.5}

// effectBundles map a processing-effect tag to its parameter bundle.
var effectBundles = map[string]map[string]float64{
	"tape_saturation":   {"warmth": 0.6, "saturation": 0.4},
	"analog_warmth":     {"warmth": 0.5, "saturation": 0.2},
	"hall_reverb":       {"reverb_size": 0.9, "reverb_mix": 0.35},
	"room_reverb":       {"reverb_size": 0.4, "reverb_mix": 0.25},
	"plate_reverb":      {"reverb_size": 0.6, "reverb_mix": 0.3},
	"spring_reverb":     {"reverb_size": 0.5, "reverb_mix": 0.3, "drip": 0.4},
	"wooden_room":       {"reverb_size": 0.3, "reverb_mix": 0.2, "early_reflections": 0.6},
	"bright_eq":         {"high_shelf_db": 3, "low_cut_hz": 40},
	"sidechain_pump":    {"pump_depth": 0.5, "pump_rate": 1},
	"vocal_doubling":    {"doubling": 0.5},
	"light_compression": {"ratio": 2, "threshold_db": -12},
	"dub_delay":         {"delay_mix": 0.4, "feedback": 0.55},
	"shimmer":           {"shimmer_mix": 0.3, "octave": 1},
	"chorus":            {"chorus_mix": 0.35, "rate_hz": 0.8},
	"vhs_wobble":        {"wow": 0.4, "flutter": 0.3},
}

var genericEffectBundle = map[string]float64{"mix": 0.3}
