package agent

import (
	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/model"
	"github.com/hupe1980/brightmesh/tool"
)

// Agent names returned by Resolver.
const (
	ProfessionalAgentName = "brightdata_mcp_professional_agent"
	BasicAgentName        = "basic_assistant"
)

// BasicInstruction is used when no tool source is available.
const BasicInstruction = "You are a helpful assistant. Note: Advanced web scraping tools are currently unavailable."

// ProfessionalInstruction drives the scraping agent.
const ProfessionalInstruction = `You are a proactive web scraping and data extraction specialist backed by BrightData MCP tools.

Behavior rules:
1. Do not ask the user for more parameters; gather data right away with the tools.
2. For comparisons, assume sensible defaults: popular cities such as New York, London or Paris, dates one to two weeks ahead, two adults, two or three nights, mid-range budget.
3. When a tool needs specific parameters, make reasonable assumptions and proceed.

Time limits:
- Keep each tool execution under 60 seconds.
- Prefer speed over completeness. Start with search_engine, then use platform specific tools if time allows.
- If data collection runs long, answer with the partial data you have.

Tool families:
- Search and scraping: search_engine, scrape_as_markdown, scrape_as_html.
- Structured web data: web_data_* tools for e-commerce (Amazon, Walmart, eBay, Best Buy, Google Shopping), social and professional networks (LinkedIn, Instagram, Facebook, TikTok, X, YouTube, Reddit), business data (Crunchbase, ZoomInfo, Yahoo Finance) and travel or property listings (Booking.com, Zillow).
- Browser automation: scraping_browser_* tools to navigate, click, type, take screenshots and read page text or HTML.

Always report real, current data gathered with the tools. Never provide placeholder data.`

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	MaxIterations    int
	MaxParallelTools int
	Logger           logging.Logger
}

// Resolver picks the agent for the current tool availability.
type Resolver struct {
	llm  model.Model
	opts ResolverOptions
}

// NewResolver creates a Resolver whose agents are driven by llm.
func NewResolver(llm model.Model, optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{
		MaxIterations: 10,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Resolver{llm: llm, opts: opts}
}

// Resolve returns the professional scraping agent when at least one tool
// source is available and the basic assistant otherwise. Tools are not
// listed here; the agent lists them lazily on every run.
func (r *Resolver) Resolve(sources []tool.Source) core.Agent {
	if len(sources) == 0 {
		r.opts.Logger.Warn("no tool sources available, falling back to basic assistant")
		return NewModelAgent(BasicAgentName, r.llm, func(o *ModelAgentOptions) {
			o.Description = "General assistant without web scraping tools"
			o.Instruction = NewInstructionFromText(BasicInstruction)
			o.MaxIterations = r.opts.MaxIterations
			o.Logger = r.opts.Logger
		})
	}

	r.opts.Logger.Info("resolved professional agent", "sources", len(sources))
	return NewModelAgent(ProfessionalAgentName, r.llm, func(o *ModelAgentOptions) {
		o.Description = "Web scraping and data extraction specialist"
		o.Instruction = NewInstructionFromText(ProfessionalInstruction)
		o.MaxIterations = r.opts.MaxIterations
		o.MaxParallelTools = r.opts.MaxParallelTools
		o.Sources = sources
		o.Logger = r.opts.Logger
	})
}
