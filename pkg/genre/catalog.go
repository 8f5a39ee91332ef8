package genre

import "genre-swap/pkg/models"

// FallbackGenreID names the profile substituted for unknown genre ids.
const FallbackGenreID = "global_fusion"

var fallbackProfile = models.GenreProfile{
	ID:                   FallbackGenreID,
	Version:              1,
	Name:                 "Global Fusion",
	CulturalOrigin:       "global",
	InstrumentsUsed:      []string{"drum_kit", "electric_bass", "piano", "synth_pad", "guitar"},
	RhythmPattern:        "4/4_straight",
	MusicalScale:         "major",
	VocalCharacteristics: []string{"natural"},
	TempoRange:           models.TempoRange{Min: 80, Max: 140},
	ProcessingEffects:    []string{"light_compression", "plate_reverb"},
	Nicheness:            1,
	CulturalMarkers:      []string{"origin:global"},
}

// catalog is the static set of target styles loaded at startup.
var catalog = []models.GenreProfile{
	{
		ID:                   "nordic_folk",
		Version:              1,
		Name:                 "Nordic Folk",
		CulturalOrigin:       "scandinavia",
		InstrumentsUsed:      []string{"hardanger_fiddle", "nyckelharpa", "kantele", "frame_drum", "upright_bass"},
		RhythmPattern:        "traditional_nordic_meters",
		MusicalScale:         "dorian",
		VocalCharacteristics: []string{"kulning", "ethereal"},
		TempoRange:           models.TempoRange{Min: 60, Max: 120},
		ProcessingEffects:    []string{"hall_reverb", "tape_saturation", "wooden_room"},
		Nicheness:            8,
		CulturalMarkers:      []string{"origin:scandinavia", "drone_strings"},
	},
	{
		ID:                   "k_pop",
		Version:              1,
		Name:                 "K-Pop",
		CulturalOrigin:       "south_korea",
		InstrumentsUsed:      []string{"drum_machine", "synth_bass", "synth_lead", "synth_pad", "piano"},
		RhythmPattern:        "pop_4/4",
		MusicalScale:         "major",
		VocalCharacteristics: []string{"idol_style", "group_harmony"},
		TempoRange:           models.TempoRange{Min: 100, Max: 130},
		ProcessingEffects:    []string{"bright_eq", "sidechain_pump", "vocal_doubling"},
		Nicheness:            3,
		CulturalMarkers:      []string{"origin:south_korea", "dance_break"},
	},
	{
		ID:                   "afrobeat",
		Version:              1,
		Name:                 "Afrobeat",
		CulturalOrigin:       "west_africa",
		InstrumentsUsed:      []string{"talking_drum", "shekere", "electric_bass", "highlife_guitar", "horn_section"},
		RhythmPattern:        "afrobeat_12/8_polyrhythm",
		MusicalScale:         "pentatonic_minor",
		VocalCharacteristics: []string{"call_and_response"},
		TempoRange:           models.TempoRange{Min: 95, Max: 125},
		ProcessingEffects:    []string{"analog_warmth", "spring_reverb"},
		Nicheness:            5,
		CulturalMarkers:      []string{"origin:west_africa", "clave_feel"},
	},
	{
		ID:                   "bossa_nova",
		Version:              1,
		Name:                 "Bossa Nova",
		CulturalOrigin:       "brazil",
		InstrumentsUsed:      []string{"nylon_guitar", "upright_bass", "brushed_kit", "flute", "rhodes"},
		RhythmPattern:        "bossa_clave",
		MusicalScale:         "major_seventh",
		VocalCharacteristics: []string{"whispered", "intimate"},
		TempoRange:           models.TempoRange{Min: 110, Max: 145},
		ProcessingEffects:    []string{"tape_saturation", "room_reverb"},
		Nicheness:            5,
		CulturalMarkers:      []string{"origin:brazil"},
	},
	{
		ID:                   "flamenco",
		Version:              1,
		Name:                 "Flamenco",
		CulturalOrigin:       "andalusia",
		InstrumentsUsed:      []string{"flamenco_guitar", "cajon", "palmas", "upright_bass"},
		RhythmPattern:        "compas_12_beat",
		MusicalScale:         "phrygian_dominant",
		VocalCharacteristics: []string{"cante_jondo", "melismatic"},
		TempoRange:           models.TempoRange{Min: 90, Max: 180},
		ProcessingEffects:    []string{"room_reverb", "light_compression"},
		Nicheness:            7,
		CulturalMarkers:      []string{"origin:andalusia", "duende"},
	},
	{
		ID:                   "reggae",
		Version:              1,
		Name:                 "Roots Reggae",
		CulturalOrigin:       "jamaica",
		InstrumentsUsed:      []string{"one_drop_kit", "dub_bass", "skank_guitar", "organ", "horn_section"},
		RhythmPattern:        "one_drop",
		MusicalScale:         "minor",
		VocalCharacteristics: []string{"toasting", "relaxed"},
		TempoRange:           models.TempoRange{Min: 60, Max: 90},
		ProcessingEffects:    []string{"dub_delay", "spring_reverb", "analog_warmth"},
		Nicheness:            4,
		CulturalMarkers:      []string{"origin:jamaica", "offbeat_skank"},
	},
	{
		ID:                   "bhangra",
		Version:              1,
		Name:                 "Bhangra",
		CulturalOrigin:       "punjab",
		InstrumentsUsed:      []string{"dhol", "tumbi", "synth_bass", "sarangi", "algoza"},
		RhythmPattern:        "chaal_dhol",
		MusicalScale:         "mixolydian",
		VocalCharacteristics: []string{"bolian_shouts", "ornamented"},
		TempoRange:           models.TempoRange{Min: 90, Max: 115},
		ProcessingEffects:    []string{"bright_eq", "plate_reverb"},
		Nicheness:            6,
		CulturalMarkers:      []string{"origin:punjab", "hoi_calls"},
	},
	{
		ID:                   "gamelan",
		Version:              1,
		Name:                 "Javanese Gamelan",
		CulturalOrigin:       "indonesia",
		InstrumentsUsed:      []string{"kendang", "gong_ageng", "saron", "bonang", "gender"},
		RhythmPattern:        "colotomic_cycle",
		MusicalScale:         "pelog",
		VocalCharacteristics: nil,
		TempoRange:           models.TempoRange{Min: 50, Max: 100},
		ProcessingEffects:    []string{"hall_reverb", "shimmer"},
		Nicheness:            9,
		CulturalMarkers:      []string{"origin:indonesia", "interlocking_parts"},
	},
	{
		ID:                   "city_pop",
		Version:              1,
		Name:                 "City Pop",
		CulturalOrigin:       "japan",
		InstrumentsUsed:      []string{"drum_kit", "slap_bass", "rhodes", "funk_guitar", "brass_section"},
		RhythmPattern:        "funk_16th",
		MusicalScale:         "major_seventh",
		VocalCharacteristics: []string{"smooth", "group_harmony"},
		TempoRange:           models.TempoRange{Min: 95, Max: 125},
		ProcessingEffects:    []string{"chorus", "tape_saturation", "plate_reverb"},
		Nicheness:            6,
		CulturalMarkers:      []string{"origin:japan", "urban_night"},
	},
	{
		ID:                   "celtic",
		Version:              1,
		Name:                 "Celtic",
		CulturalOrigin:       "ireland",
		InstrumentsUsed:      []string{"bodhran", "tin_whistle", "celtic_harp", "bouzouki", "uilleann_pipes"},
		RhythmPattern:        "jig_6/8",
		MusicalScale:         "mixolydian",
		VocalCharacteristics: []string{"sean_nos", "ornamented"},
		TempoRange:           models.TempoRange{Min: 100, Max: 140},
		ProcessingEffects:    []string{"wooden_room", "hall_reverb"},
		Nicheness:            6,
		CulturalMarkers:      []string{"origin:ireland"},
	},
	{
		ID:                   "son_cubano",
		Version:              1,
		Name:                 "Son Cubano",
		CulturalOrigin:       "cuba",
		InstrumentsUsed:      []string{"bongos", "tres", "baby_bass", "trumpet", "claves"},
		RhythmPattern:        "son_clave_3_2",
		MusicalScale:         "minor",
		VocalCharacteristics: []string{"call_and_response", "montuno_soneo"},
		TempoRange:           models.TempoRange{Min: 80, Max: 120},
		ProcessingEffects:    []string{"room_reverb", "analog_warmth"},
		Nicheness:            7,
		CulturalMarkers:      []string{"origin:cuba", "clave_feel"},
	},
	{
		ID:                   "vaporwave",
		Version:              1,
		Name:                 "Vaporwave",
		CulturalOrigin:       "internet",
		InstrumentsUsed:      []string{"drum_machine", "synth_bass", "synth_pad", "rhodes"},
		RhythmPattern:        "slowed_4/4",
		MusicalScale:         "major_seventh",
		VocalCharacteristics: []string{"pitched_down", "chopped"},
		TempoRange:           models.TempoRange{Min: 60, Max: 95},
		ProcessingEffects:    []string{"tape_saturation", "vhs_wobble", "hall_reverb"},
		Nicheness:            8,
		CulturalMarkers:      []string{"origin:internet", "nostalgia"},
	},
}
