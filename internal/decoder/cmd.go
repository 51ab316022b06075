package decoder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhukov-alex/snowflake/internal/app"
	"github.com/zhukov-alex/snowflake/internal/config"
	"github.com/zhukov-alex/snowflake/internal/logger"
)

// DecodeCmd decodes the ids given as arguments, or read from stdin when
// there are none, using the generator layout from the config file.
func DecodeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewDecode(viper.GetViper())
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	l, err := logger.New(cfg.Logger, app.DevMode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer l.Sync()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != FormatJSON && format != FormatText {
		return fmt.Errorf("unsupported format: %q", format)
	}

	svc := NewService(l, &Config{
		Layout: cfg.Generator.Layout(),
		Format: format,
	}, cmd.OutOrStdout())

	var failed int
	if len(args) > 0 {
		failed, err = svc.DecodeAll(args)
	} else {
		failed, err = svc.DecodeReader(os.Stdin)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d ids could not be decoded", failed)
	}
	return nil
}
