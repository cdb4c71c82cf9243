package status

import (
	"slices"
	"strings"
)

// Priority bands. Precedence between categories is fixed by Categories;
// the bands only keep ids readable in diagnostics.
const (
	errorBand   = 100
	waitingBand = 200
	workingBand = 300
	idleBand    = 400
)

// Spinner glyphs drawn by agent CLIs while busy. The braille set is the
// cli-spinners "dots" frame list; the rest are the asterisk-style frames.
const (
	brailleSpinners  = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏"
	asteriskSpinners = "·✳✽✶✻✢"
	spinnerRunes     = brailleSpinners + asteriskSpinners
)

// thinkingWords are the status verbs shown next to the spinner while the
// agent is busy.
var thinkingWords = []string{
	"accomplishing", "actioning", "actualizing", "baking", "billowing",
	"booping", "brewing", "calculating", "cerebrating", "channelling",
	"churning", "clauding", "coalescing", "cogitating", "combobulating",
	"computing", "concocting", "connecting", "conjuring", "considering",
	"contemplating", "cooking", "crafting", "creating", "crunching",
	"deciphering", "deliberating", "determining", "discombobulating",
	"divining", "doing", "effecting", "elucidating", "enchanting",
	"envisioning", "finagling", "flibbertigibbeting", "forging", "forming",
	"frolicking", "generating", "germinating", "gusting", "hatching",
	"herding", "honking", "hustling", "ideating", "imagining", "incubating",
	"inferring", "jiving", "manifesting", "marinating", "meandering",
	"metamorphosing", "moseying", "mulling", "mustering", "musing",
	"noodling", "percolating", "perusing", "philosophising", "pondering",
	"pontificating", "processing", "puttering", "puzzling", "recombobulating",
	"reticulating", "ruminating", "sautéing", "scheming", "schlepping",
	"shimmying", "shucking", "simmering", "smooshing", "spelunking",
	"spinning", "stewing", "sublimating", "sussing", "synthesizing",
	"thinking", "tinkering", "transmuting", "unfurling", "unravelling",
	"vibing", "wandering", "whirring", "wibbling", "wizarding", "working",
	"wrangling",
}

var defaultRules = []Rule{
	// error
	{
		ID: "error-stack-trace", Category: StatusError, Priority: errorBand, Confidence: 0.95,
		Description: "error line followed by indented stack frames",
		Matcher: Tail(20, MustRegex(
			`(?m)^[^\n]*\b\w*(?:Error|Exception)\b[^\n]*(?:\n[ \t]+at [^\n]+)+`)),
	},
	{
		ID: "api-error", Category: StatusError, Priority: errorBand + 10, Confidence: 0.95,
		Description: "API, quota, auth or connectivity failure reported by the agent",
		Matcher: Tail(15, MustRegex(`(?i)\bapi error\b[^\n]*` +
			`|\b(?:rate|usage) limit (?:exceeded|reached)\b[^\n]*` +
			`|\bquota (?:exceeded|reached)\b[^\n]*` +
			`|\berror: (?:session|connection|authentication|api)\b[^\n]*` +
			`|overloaded_error|credit balance is too low|invalid api key|request timed out`)),
	},
	{
		ID: "process-crash", Category: StatusError, Priority: errorBand + 20, Confidence: 0.9,
		Description: "runtime panic, traceback or fatal signal",
		Matcher: Tail(10, MustRegex(
			`(?m)^(?:panic: \S|fatal error: \S|Traceback \(most recent call last\):|Segmentation fault|Bus error|FATAL\b)[^\n]*`)),
	},
	{
		ID: "error-message", Category: StatusError, Priority: errorBand + 30, Confidence: 0.9,
		Description: "line starting with Error: or Fatal:",
		Matcher: Tail(8, MustRegex(
			`(?m)^[ \t]*(?:[✗✘×❌][ \t]*)?(?:Error|ERROR|Fatal|FATAL):[ \t]+\S[^\n]*`)),
	},

	// waiting
	{
		ID: "permission-dialog", Category: StatusWaiting, Priority: waitingBand, Confidence: 0.95,
		Description: "tool permission dialog options",
		Matcher: Literal(
			"No, and tell Claude what to do differently",
			"Yes, allow once",
			"Yes, allow always",
			"Yes, and don't ask again",
			"Allow this MCP server",
			"Do you trust the files in this folder?",
			"Waiting for user confirmation",
			"Allow execution of",
			"Run this command?",
			"Execute this?",
			"Action Required",
		),
	},
	{
		ID: "permission-prompt", Category: StatusWaiting, Priority: waitingBand + 10, Confidence: 0.95,
		Description: "yes/no permission question",
		Matcher: Any(
			MustRegex(`(?i)\b(?:do you want (?:me )?to|would you like (?:me )?to|shall i|should i|may i|can i|allow)\b[^\n]*\?[ \t]*[\(\[]y(?:es)?/n(?:o)?[\)\]]`),
			Weighted(0.9, MustRegex(`(?im)^[^\w\n]*do you want to [^\n]*\?[ \t]*$`)),
		),
	},
	{
		ID: "plan-approval", Category: StatusWaiting, Priority: waitingBand + 20, Confidence: 0.95,
		Description: "plan mode approval dialog",
		Matcher: Literal(
			"Ready to code?",
			"Here is Claude's plan",
			"No, keep planning",
			"Yes, and auto-accept edits",
			"Yes, and manually approve edits",
			"Approve this plan?",
			"Execute plan?",
		),
	},
	{
		ID: "question-select", Category: StatusWaiting, Priority: waitingBand + 30, Confidence: 0.9,
		Description: "multiple choice question",
		Matcher: Literal(
			"Use arrow keys to navigate",
			"Press Enter to select",
			"Enter to select",
			"↑/↓ to navigate",
			"Type something.",
			"Select an option",
		),
	},
	{
		ID: "feedback-request", Category: StatusWaiting, Priority: waitingBand + 40, Confidence: 0.9,
		Description: "session feedback survey",
		Matcher: Literal(
			"How is Claude doing this session?",
			"What should Claude do instead?",
			"Was this helpful?",
			"Rate this conversation",
		),
	},
	{
		ID: "confirm-suffix", Category: StatusWaiting, Priority: waitingBand + 50, Confidence: 0.9,
		Description: "recent line ending in a confirmation suffix",
		Matcher: Tail(5, MustRegex(
			`(?im)(?:[\(\[](?:y/n|yes/no)[\)\]]|\bcontinue\?|\bproceed\?)[ \t]*:?[ \t]*$`)),
	},
	{
		ID: "open-question", Category: StatusWaiting, Priority: waitingBand + 60, Confidence: 0.8,
		Description: "last line is a question",
		Matcher:     Tail(1, Weighted(0.6, MustRegex(`\?[ \t]*$`))),
	},

	// working
	{
		ID: "interrupt-hint", Category: StatusWorking, Priority: workingBand, Confidence: 0.95,
		Description: "interrupt hint shown while a turn is running",
		Matcher:     LiteralFold("esc to interrupt", "ctrl+c to interrupt", "esc to cancel", "esc interrupt"),
	},
	{
		ID: "spinner-activity", Category: StatusWorking, Priority: workingBand + 10, Confidence: 0.9,
		Description: "spinner glyph leading a status line",
		Matcher: Tail(10, Any(
			MustRegex(`(?m)^[ \t]*[`+brailleSpinners+`][ \t]*\S[^\n]*`),
			MustRegex(`(?m)^[ \t]*[`+asteriskSpinners+`][ \t]*\S[^\n]*(?:…|\.\.\.)`),
		)),
	},
	{
		ID: "thinking-timer", Category: StatusWorking, Priority: workingBand + 20, Confidence: 0.9,
		Description: "elapsed-time counter or thinking verb with an ellipsis",
		Matcher: Tail(10, Any(
			MustRegex(`(?:…|\.\.\.)[ \t]*\((?:esc to interrupt[ \t]*·[ \t]*)?\d+s\b[^)\n]*\)`),
			Weighted(0.85, MustRegex(`(?i)\b(?:`+strings.Join(thinkingWords, "|")+`)(?:…|\.\.\.)`)),
		)),
	},
	{
		ID: "tool-activity", Category: StatusWorking, Priority: workingBand + 30, Confidence: 0.8,
		Description: "progress verb at the start of a recent line",
		Matcher: Tail(3, Weighted(0.75, MustRegex(
			`(?im)^[^\w\n]*(?:reading|writing|editing|searching|running|executing|installing|compiling|building|downloading|fetching|analyzing|updating|creating|applying)\b[ \t]*\S*`))),
	},

	// idle
	{
		ID: "completion-summary", Category: StatusIdle, Priority: idleBand, Confidence: 0.85,
		Description: "turn summary after the agent finished",
		Matcher: Tail(12, Any(
			MustRegex(`(?i)\b(?:worked|cooked|baked|brewed|churned|crunched|sautéed|cogitated) for \d+[ \t]*[smh]\b[^\n]*`),
			Weighted(0.8, Literal("Task completed", "All set.", "Done.")),
		)),
	},
	{
		ID: "input-prompt", Category: StatusIdle, Priority: idleBand + 10, Confidence: 0.85,
		Description: "empty input prompt",
		Matcher: Tail(5, Any(
			MustRegex(`(?m)^[ \t]*[│|]?[ \t]*[>❯›][ \t]*[│|]?[ \t]*$`),
			Weighted(0.9, MustRegex(`[>❯›] Try "[^\n]*`)),
		)),
	},
	{
		ID: "shortcuts-hint", Category: StatusIdle, Priority: idleBand + 20, Confidence: 0.75,
		Description: "footer hint shown at an idle prompt",
		Matcher:     LiteralFold("? for shortcuts", "shift+tab to cycle", "/help for help"),
	},
	{
		ID: "shell-prompt", Category: StatusIdle, Priority: idleBand + 30, Confidence: 0.7,
		Description: "shell prompt on the last line",
		Matcher:     Tail(1, Weighted(0.9, MustRegex(`(?:^|[\w~/\])}:-])[$#%][ \t]*$`))),
	},
}

// DefaultRules returns the built-in catalog in declaration order.
func DefaultRules() []Rule {
	return slices.Clone(defaultRules)
}
