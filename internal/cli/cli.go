// Package cli implements the syncribullet-config commands: editing receiver
// settings in the local store and building the install token from them.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sort"
	"strings"

	"syncribullet/pkg/config"
	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/manifest"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/registry"
	"syncribullet/pkg/store"
	"syncribullet/pkg/token"
	"syncribullet/pkg/types"
	"syncribullet/pkg/urlutil"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage")

// noneArg selects nothing for list commands.
const noneArg = "none"

// Usage is printed on ErrUsage.
const Usage = `Usage: syncribullet-config [flags] <command> [args]

Commands:
  show [receiver]                    print stored settings
  catalogs <receiver> [id...|none]   list or select catalogs, in order
  livesync <receiver> [type...|none] list or select live sync types
  auth <receiver> key=value...       store credentials
  remove <receiver>                  delete everything stored for a receiver
  auth-url <receiver> <client-id>    print the OAuth login URL
  addons                             list external stream addons
  addon-add <manifest-url> [name]    add an external stream addon
  addon-remove <manifest-url>        remove an external stream addon
  token                              build the install URL`

// CLI runs configuration commands against a store.
type CLI struct {
	cfg       *config.Config
	store     store.Store
	receivers *registry.ReceiverRegistry
	tokens    *token.Codec
	log       *logging.Logger
	out       io.Writer
}

// New creates a CLI writing results to out.
func New(cfg *config.Config, st store.Store, reg *registry.ReceiverRegistry, codec *token.Codec, log *logging.Logger, out io.Writer) *CLI {
	return &CLI{
		cfg:       cfg,
		store:     st,
		receivers: reg,
		tokens:    codec,
		log:       log.WithComponent("cli"),
		out:       out,
	}
}

// Run executes the command in args.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "show":
		return c.show(ctx, rest)
	case "catalogs":
		return c.catalogs(ctx, rest)
	case "livesync":
		return c.liveSync(ctx, rest)
	case "auth":
		return c.auth(ctx, rest)
	case "remove":
		return c.remove(ctx, rest)
	case "auth-url":
		return c.authURL(rest)
	case "addons":
		return c.addons(ctx)
	case "addon-add":
		return c.addonAdd(ctx, rest)
	case "addon-remove":
		return c.addonRemove(ctx, rest)
	case "token":
		return c.token(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

type receiverView struct {
	Receiver    types.ReceiverID     `json:"receiver"`
	Credentials []string             `json:"credentials"`
	Catalogs    []string             `json:"catalogs"`
	LiveSync    []types.LiveSyncType `json:"liveSync"`
}

func (c *CLI) show(ctx context.Context, args []string) error {
	list := c.receivers.All()
	if len(args) > 0 {
		r, err := c.receiver(args[0])
		if err != nil {
			return err
		}
		list = []interfaces.Receiver{r}
	}

	views := make([]receiverView, 0, len(list))
	for _, r := range list {
		cfg, ok, err := c.store.Get(ctx, r.ID())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		eff := manifest.Resolve(r, cfg)
		v := receiverView{
			Receiver:    r.ID(),
			Credentials: credentialKeys(cfg.Credentials),
			Catalogs:    make([]string, 0, len(eff.Catalogs)),
			LiveSync:    eff.LiveSync,
		}
		for _, item := range eff.Catalogs {
			v.Catalogs = append(v.Catalogs, item.ID)
		}
		views = append(views, v)
	}
	return c.printJSON(views)
}

func (c *CLI) catalogs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: catalogs <receiver> [id...|none]", ErrUsage)
	}
	client, err := c.client(args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 {
		eff, err := client.EffectiveSettings(ctx)
		if err != nil {
			return err
		}
		for _, item := range client.ManifestCatalogItems() {
			mark := " "
			if slices.ContainsFunc(eff.Catalogs, func(e types.ManifestCatalogItem) bool { return e.ID == item.ID }) {
				mark = "*"
			}
			fmt.Fprintf(c.out, "%s %-28s %-8s %s\n", mark, item.ID, item.Type, item.Name)
		}
		return nil
	}

	ids := selection(args[1:])
	if err := client.MergeUserConfig(ctx, types.UserConfigPatch{Catalogs: &ids}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %d catalogs selected\n", client.ID(), len(ids))
	return nil
}

func (c *CLI) liveSync(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: livesync <receiver> [type...|none]", ErrUsage)
	}
	client, err := c.client(args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 {
		eff, err := client.EffectiveSettings(ctx)
		if err != nil {
			return err
		}
		for _, t := range client.LiveSyncTypes() {
			mark := " "
			if slices.Contains(eff.LiveSync, t) {
				mark = "*"
			}
			fmt.Fprintf(c.out, "%s %s\n", mark, t)
		}
		return nil
	}

	raw := selection(args[1:])
	selected := make([]types.LiveSyncType, len(raw))
	for i, s := range raw {
		selected[i] = types.LiveSyncType(s)
	}
	if err := client.MergeUserConfig(ctx, types.UserConfigPatch{LiveSync: &selected}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %d live sync types selected\n", client.ID(), len(selected))
	return nil
}

func (c *CLI) auth(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: auth <receiver> key=value...", ErrUsage)
	}
	client, err := c.client(args[0])
	if err != nil {
		return err
	}

	creds := make(types.Credentials, len(args)-1)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: credential %q is not key=value", ErrUsage, kv)
		}
		creds[k] = v
	}
	if err := client.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &creds}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: credentials stored\n", client.ID())
	return nil
}

func (c *CLI) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove <receiver>", ErrUsage)
	}
	client, err := c.client(args[0])
	if err != nil {
		return err
	}
	if err := client.RemoveUserConfig(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: removed\n", client.ID())
	return nil
}

func (c *CLI) authURL(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: auth-url <receiver> <client-id>", ErrUsage)
	}
	r, err := c.receiver(args[0])
	if err != nil {
		return err
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil || base.Host == "" {
		return fmt.Errorf("invalid BASE_URL %q", c.cfg.BaseURL)
	}

	u, err := receivers.AuthorizeURL(r, args[1], base.Scheme, base.Host)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, u)
	return nil
}

func (c *CLI) addons(ctx context.Context) error {
	g, err := c.store.GetGlobal(ctx)
	if err != nil {
		return err
	}
	for _, a := range g.ExternalStreamAddons {
		if a.Name != "" {
			fmt.Fprintf(c.out, "%s  %s\n", a.URL, a.Name)
			continue
		}
		fmt.Fprintln(c.out, a.URL)
	}
	return nil
}

func (c *CLI) addonAdd(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: addon-add <manifest-url> [name]", ErrUsage)
	}
	addon := types.ExternalAddon{URL: strings.TrimSpace(args[0])}
	if len(args) == 2 {
		addon.Name = args[1]
	}
	if !urlutil.IsHTTPURL(addon.URL) {
		return fmt.Errorf("addon url %q is not http(s)", addon.URL)
	}

	err := c.store.UpdateGlobal(ctx, func(g *types.GlobalSettings) error {
		for _, a := range g.ExternalStreamAddons {
			if a.URL == addon.URL {
				return fmt.Errorf("addon %s already added", addon.URL)
			}
		}
		g.ExternalStreamAddons = append(g.ExternalStreamAddons, addon)
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Debug("addon added", "host", urlutil.Host(addon.URL))
	fmt.Fprintf(c.out, "added %s\n", addon.URL)
	return nil
}

func (c *CLI) addonRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: addon-remove <manifest-url>", ErrUsage)
	}
	target := strings.TrimSpace(args[0])

	err := c.store.UpdateGlobal(ctx, func(g *types.GlobalSettings) error {
		i := slices.IndexFunc(g.ExternalStreamAddons, func(a types.ExternalAddon) bool { return a.URL == target })
		if i < 0 {
			return fmt.Errorf("addon %s not found", target)
		}
		g.ExternalStreamAddons = slices.Delete(g.ExternalStreamAddons, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "removed %s\n", target)
	return nil
}

func (c *CLI) token(ctx context.Context) error {
	configs := make(map[types.ReceiverID]types.UserConfig)
	for _, r := range c.receivers.All() {
		cfg, ok, err := c.store.Get(ctx, r.ID())
		if err != nil {
			return err
		}
		if ok {
			configs[r.ID()] = cfg
		}
	}
	globals, err := c.store.GetGlobal(ctx)
	if err != nil {
		return err
	}

	tok, err := c.tokens.Build(configs, globals)
	if errors.Is(err, token.ErrTokenTooLong) {
		return fmt.Errorf("%w; deselect catalogs or remove addons", err)
	}
	if err != nil {
		return err
	}
	if c.cfg.EncryptionKeyIsFallback {
		c.log.Warn("token built with the public development key")
	}

	fmt.Fprintln(c.out, strings.TrimRight(c.cfg.BaseURL, "/")+"/"+tok+"/manifest.json")
	return nil
}

func (c *CLI) receiver(name string) (interfaces.Receiver, error) {
	id, err := types.ParseReceiverID(strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	r, ok := c.receivers.Get(id)
	if !ok {
		return nil, fmt.Errorf("receiver %s is not registered", id)
	}
	return r, nil
}

func (c *CLI) client(name string) (*receivers.Client, error) {
	r, err := c.receiver(name)
	if err != nil {
		return nil, err
	}
	return receivers.NewClient(r, c.store, c.log), nil
}

func (c *CLI) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// selection turns list arguments into a selection; "none" alone selects nothing.
func selection(args []string) []string {
	if len(args) == 1 && args[0] == noneArg {
		return []string{}
	}
	return args
}

func credentialKeys(creds types.Credentials) []string {
	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
