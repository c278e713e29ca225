package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ccapprover/internal/approver"
	"ccapprover/internal/provider"
	"ccapprover/internal/training"
)

// Supported optimizer strategies.
const (
	OptimizerMIPRO = "mipro"
	OptimizerGEPA  = "gepa"
)

const (
	validationSplitRatio = 0.2
	randomSeed           = 7
)

// Options select models and effort for one optimization run.
type Options struct {
	TaskModel       string
	PromptModel     string
	EvalModel       string
	ReflectionModel string
	Optimizer       string
	Auto            string
	HistoryBytes    int
	WarmStart       string
}

type effort struct {
	candidates int
	maxDemos   int
}

func effortFor(auto string) effort {
	switch auto {
	case "medium":
		return effort{candidates: 8, maxDemos: 6}
	case "heavy":
		return effort{candidates: 12, maxDemos: 8}
	default:
		return effort{candidates: 4, maxDemos: 4}
	}
}

// ModelFactory builds chat models from identifiers; tests substitute
// stubs.
type ModelFactory func(ctx context.Context, identifier string, params provider.ModelParams) (model.ChatModel, error)

// Orchestrator compiles decision programs from labeled examples.
type Orchestrator struct {
	NewModel ModelFactory
}

// New returns an orchestrator wired to the real provider.
func New() *Orchestrator {
	return &Orchestrator{NewModel: provider.NewChatModel}
}

// Compile optimizes the decision program against labeled examples and
// reports held-out accuracy in [0,1]. An empty training set is a setup
// mistake and surfaces as an error.
func (o *Orchestrator) Compile(ctx context.Context, opts Options, trainPath, valPath, policy string) (*approver.CompiledProgram, float64, error) {
	train, err := training.ReadJSONL(trainPath, policy, opts.HistoryBytes)
	if err != nil {
		return nil, 0, err
	}
	if len(train) == 0 {
		return nil, 0, fmt.Errorf("no training examples in %s", trainPath)
	}

	var dev []training.Example
	if valPath != "" {
		dev, err = training.ReadJSONL(valPath, policy, opts.HistoryBytes)
		if err != nil {
			return nil, 0, err
		}
	} else {
		rng := rand.New(rand.NewSource(randomSeed))
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		k := int(validationSplitRatio * float64(len(train)))
		if k < 1 {
			k = 1
		}
		dev, train = train[:k], train[k:]
	}

	taskModel, err := o.NewModel(ctx, opts.TaskModel, provider.DefaultParams())
	if err != nil {
		return nil, 0, err
	}

	base := &approver.CompiledProgram{}
	if opts.WarmStart != "" {
		if warm := approver.LoadCompiled([]string{opts.WarmStart}); warm != nil {
			base = warm
		}
	}

	var compiled *approver.CompiledProgram
	switch opts.Optimizer {
	case OptimizerGEPA:
		compiled, err = o.compileGEPA(ctx, opts, base, taskModel, train, dev)
	default:
		compiled, err = o.compileMIPRO(ctx, opts, base, taskModel, train, dev)
	}
	if err != nil {
		return nil, 0, err
	}

	evalModel := taskModel
	if opts.EvalModel != "" {
		evalModel, err = o.NewModel(ctx, opts.EvalModel, provider.DefaultParams())
		if err != nil {
			return nil, 0, err
		}
	}
	acc := evaluate(ctx, compiled.Bind(evalModel), dev)
	return compiled, acc, nil
}

// compileMIPRO searches candidate few-shot demo subsets and keeps the
// one with the best held-out agreement. When a prompt model is
// configured it also proposes one refined instruction candidate.
func (o *Orchestrator) compileMIPRO(ctx context.Context, opts Options, base *approver.CompiledProgram,
	taskModel model.ChatModel, train []training.Example, dev []training.Example) (*approver.CompiledProgram, error) {

	e := effortFor(opts.Auto)
	rng := rand.New(rand.NewSource(randomSeed))

	best := &approver.CompiledProgram{Instructions: base.Instructions, Demos: base.Demos}
	bestScore := evaluate(ctx, best.Bind(taskModel), dev)

	for i := 0; i < e.candidates; i++ {
		candidate := &approver.CompiledProgram{
			Instructions: base.Instructions,
			Demos:        sampleDemos(rng, train, e.maxDemos),
		}
		if score := evaluate(ctx, candidate.Bind(taskModel), dev); score > bestScore {
			best, bestScore = candidate, score
		}
	}

	if opts.PromptModel != "" {
		promptModel, err := o.NewModel(ctx, opts.PromptModel, provider.ReflectionParams())
		if err != nil {
			return nil, err
		}
		refined, err := proposeInstructions(ctx, promptModel, best, failures(ctx, best.Bind(taskModel), dev))
		if err != nil {
			slog.Debug("instruction proposal failed, keeping current", "error", err)
			return best, nil
		}
		candidate := &approver.CompiledProgram{Instructions: refined, Demos: best.Demos}
		if score := evaluate(ctx, candidate.Bind(taskModel), dev); score > bestScore {
			best = candidate
		}
	}
	return best, nil
}

// compileGEPA runs the demo search, then iteratively asks the
// reflection model to rewrite the instructions based on held-out
// misses, keeping each rewrite only when it scores better.
func (o *Orchestrator) compileGEPA(ctx context.Context, opts Options, base *approver.CompiledProgram,
	taskModel model.ChatModel, train []training.Example, dev []training.Example) (*approver.CompiledProgram, error) {

	best, err := o.compileMIPRO(ctx, opts, base, taskModel, train, dev)
	if err != nil {
		return nil, err
	}
	bestScore := evaluate(ctx, best.Bind(taskModel), dev)

	reflectionID := opts.ReflectionModel
	if reflectionID == "" {
		reflectionID = opts.TaskModel
	}
	reflection, err := o.NewModel(ctx, reflectionID, provider.ReflectionParams())
	if err != nil {
		return nil, err
	}

	rounds := effortFor(opts.Auto).candidates / 4
	if rounds < 1 {
		rounds = 1
	}
	for i := 0; i < rounds; i++ {
		missed := failures(ctx, best.Bind(taskModel), dev)
		if len(missed) == 0 {
			break
		}
		refined, err := proposeInstructions(ctx, reflection, best, missed)
		if err != nil {
			slog.Debug("reflection proposal failed", "round", i, "error", err)
			break
		}
		candidate := &approver.CompiledProgram{Instructions: refined, Demos: best.Demos}
		if score := evaluate(ctx, candidate.Bind(taskModel), dev); score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, nil
}

// evaluate is the held-out agreement metric: the fraction of dev
// examples whose predicted decision matches the gold label.
func evaluate(ctx context.Context, program approver.Program, dev []training.Example) float64 {
	if len(dev) == 0 {
		return 0
	}
	correct := 0
	for _, ex := range dev {
		res, err := program.Run(ctx, requestFor(ex))
		if err != nil {
			continue
		}
		if got := approver.NormalizeLabel(res.Decision); got != "" && got == ex.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(dev))
}

// failures collects short descriptions of dev misses for the
// instruction-refinement prompt.
func failures(ctx context.Context, program approver.Program, dev []training.Example) []string {
	var missed []string
	for _, ex := range dev {
		res, err := program.Run(ctx, requestFor(ex))
		if err != nil {
			continue
		}
		got := approver.NormalizeLabel(res.Decision)
		if got == ex.Label {
			continue
		}
		missed = append(missed, fmt.Sprintf("tool=%s input=%s expected=%s got=%s",
			ex.Tool, truncate(ex.ToolInputJSON, 200), ex.Label, got))
	}
	return missed
}

func proposeInstructions(ctx context.Context, m model.ChatModel, current *approver.CompiledProgram, missed []string) (string, error) {
	var b strings.Builder
	b.WriteString("You are refining the instructions of a permission-decision assistant ")
	b.WriteString("that answers allow, deny or ask for tool invocations.\n\nCurrent instructions:\n")
	if current.Instructions != "" {
		b.WriteString(current.Instructions)
	} else {
		b.WriteString("(default)")
	}
	b.WriteString("\n\nMisclassified examples:\n")
	for _, f := range missed {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\nWrite improved instructions. Emphasize the policy and safety; keep the ")
	b.WriteString("JSON output contract {\"decision\": ..., \"reason\": ...}. Reply with the ")
	b.WriteString("instructions only.")

	resp, err := m.Generate(ctx, []*schema.Message{{Role: schema.User, Content: b.String()}})
	if err != nil {
		return "", fmt.Errorf("propose instructions: %w", err)
	}
	refined := strings.TrimSpace(resp.Content)
	if refined == "" {
		return "", fmt.Errorf("propose instructions: empty reply")
	}
	return refined, nil
}

func sampleDemos(rng *rand.Rand, train []training.Example, maxDemos int) []approver.Demo {
	if len(train) == 0 {
		return nil
	}
	picked := rng.Perm(len(train))
	if len(picked) > maxDemos {
		picked = picked[:maxDemos]
	}
	demos := make([]approver.Demo, 0, len(picked))
	for _, idx := range picked {
		ex := train[idx]
		demos = append(demos, approver.Demo{
			Policy:        ex.Policy,
			Tool:          ex.Tool,
			ToolInputJSON: ex.ToolInputJSON,
			HistoryTail:   ex.HistoryTail,
			Decision:      ex.Label,
		})
	}
	return demos
}

func requestFor(ex training.Example) approver.Request {
	return approver.Request{
		Policy:        ex.Policy,
		Tool:          ex.Tool,
		ToolInputJSON: ex.ToolInputJSON,
		HistoryTail:   ex.HistoryTail,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
