package safety

// Config carries the rule tables the gate evaluates. Built once at
// startup (DefaultConfig or from operator overrides) and treated as
// immutable afterwards.
type Config struct {
	// HarmfulPatterns are regular expressions. A hit blocks the request
	// unless the context declares a therapeutic setting.
	HarmfulPatterns []string

	// SensitiveOperations require an explicit consent flag in context.
	SensitiveOperations []string

	// TraumaIndicators never block but switch on the grounding protocol.
	TraumaIndicators []string

	// ShadowIndicators flag content that should go through conscious
	// integration downstream. Never blocking.
	ShadowIndicators []string
}

func DefaultConfig() Config {
	return Config{
		HarmfulPatterns: []string{
			`manipulat\w+`,
			`exploit\w+`,
			`deceiv\w+`,
			`harm\w+.*others`,
			`hurt\s+(someone|somebody|others|people)`,
		},
		SensitiveOperations: []string{
			"personal data", "private information", "therapeutic work",
			"trauma processing", "shadow work", "deep integration",
		},
		TraumaIndicators: []string{
			"trigger", "flashback", "dissociat", "panic",
			"overwhelm", "freeze", "hypervigilant", "numb",
		},
		ShadowIndicators: []string{
			"suppress", "hide", "deny", "reject", "avoid",
			"dark", "forbidden", "shameful", "unacceptable",
		},
	}
}

// GroundingProtocolName identifies the downstream guidance block
// activated when trauma indicators surface.
const GroundingProtocolName = "activate_silence_contemplation_mode"
