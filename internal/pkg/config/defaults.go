package config

// Defaults returns a fresh copy of built-in document. Mappings describe the report layout
// of XP-Pen Deco 640 tablet.
func Defaults() map[string]interface{} {
	wrappedTilt := func(byteIndex int) map[string]interface{} {
		return map[string]interface{}{
			"byteIndex":   byteIndex,
			"positiveMax": 60,
			"negativeMin": 256,
			"negativeMax": 196,
			"type":        "wrapped-range",
		}
	}

	return map[string]interface{}{
		"device": map[string]interface{}{
			"product":   "Deco 640",
			"usage":     1,
			"interface": 2,
		},
		"reportId":         2,
		"useSocketServer":  true,
		"socketServerPort": 8080,
		"midiInputId":      nil,
		"midiStrumChannel": nil,
		"allowPitchBend":   true,
		"noteDuration": map[string]interface{}{
			"min":        0.15,
			"max":        1.5,
			"multiplier": 1.0,
			"curve":      1.0,
			"spread":     "inverse",
			"control":    "tiltXY",
			"default":    1.0,
		},
		"pitchBend": map[string]interface{}{
			"min":        -1.0,
			"max":        1.0,
			"multiplier": 1.0,
			"curve":      4.0,
			"spread":     "central",
			"control":    "yaxis",
			"default":    0.0,
		},
		"noteVelocity": map[string]interface{}{
			"min":        0,
			"max":        127,
			"multiplier": 1.0,
			"curve":      4.0,
			"spread":     "direct",
			"control":    "pressure",
			"default":    64,
		},
		"strumming": map[string]interface{}{
			"pluckVelocityScale": 4.0,
			"pressureThreshold":  0.1,
			"midiChannel":        nil,
			"initialNotes":       []interface{}{"C4", "E4", "G4"},
			"upperNoteSpread":    3,
			"lowerNoteSpread":    3,
			"releaseOnLift":      false,
		},
		"noteRepeater": map[string]interface{}{
			"active":              false,
			"pressureMultiplier":  1.0,
			"frequencyMultiplier": 1.0,
		},
		"transpose": map[string]interface{}{
			"active":    false,
			"semitones": 0,
		},
		"strumRelease": map[string]interface{}{
			"active":             false,
			"midiNote":           38,
			"midiChannel":        nil,
			"maxDuration":        0.25,
			"velocityMultiplier": 1.0,
		},
		"stylusButtons": map[string]interface{}{
			"active":                true,
			"primaryButtonAction":   []interface{}{"transpose", 12},
			"secondaryButtonAction": "toggle-repeater",
			"primarySemitones":      0,
			"secondarySemitones":    0,
		},
		"tabletButtons": map[string]interface{}{
			"1": []interface{}{"set-strum-chord", "C", 4},
			"2": []interface{}{"set-strum-chord", "G", 4},
			"3": []interface{}{"set-strum-chord", "Am", 4},
			"4": []interface{}{"set-strum-chord", "F", 4},
			"5": []interface{}{"set-strum-chord", "Dm", 4},
			"6": []interface{}{"set-strum-chord", "Em", 4},
			"7": []interface{}{"increment-chord-in-progression", "c-major-pop", -1},
			"8": []interface{}{"increment-chord-in-progression", "c-major-pop", 1},
		},
		"mappings": map[string]interface{}{
			"status": map[string]interface{}{
				"byteIndex": 1,
				"max":       63,
				"type":      "code",
				"values": map[string]interface{}{
					"192": map[string]interface{}{"state": "none"},
					"160": map[string]interface{}{"state": "hover"},
					"162": map[string]interface{}{"state": "hover", "secondaryButtonPressed": true},
					"164": map[string]interface{}{"state": "hover", "primaryButtonPressed": true},
					"161": map[string]interface{}{"state": "contact"},
					"163": map[string]interface{}{"state": "contact", "secondaryButtonPressed": true},
					"165": map[string]interface{}{"state": "contact", "primaryButtonPressed": true},
					"240": map[string]interface{}{"state": "buttons"},
				},
			},
			"x":        map[string]interface{}{"byteIndex": 3, "max": 124, "type": "range"},
			"y":        map[string]interface{}{"byteIndex": 5, "max": 70, "type": "range"},
			"pressure": map[string]interface{}{"byteIndex": 7, "max": 63, "type": "range"},
			"tiltX":    wrappedTilt(8),
			"tiltY":    wrappedTilt(9),
			"tabletButtons": map[string]interface{}{
				"byteIndex":   2,
				"buttonCount": 8,
				"type":        "bit-flags",
			},
		},
	}
}
