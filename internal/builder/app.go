package builder

import (
	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/pkg/domain"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"google.golang.org/genai"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config     *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、SMTPなど）。
	Options    config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（パス、モデル名など）。
	BookConfig *domain.BookConfig     // BookConfigは、生成対象の絵本一冊分の設定（config.json）です。
	BaseDir    string                 // BaseDirは、config.json と photos/ が置かれた作業ディレクトリです。
	Layout     *artifact.Layout       // Layoutは、output/ 配下の生成物の置き場所を解決します。
	Reader     remoteio.InputReader   // Readerは、台本や設定の読み込みに使用する入力元です。
	Writer     remoteio.OutputWriter  // Writerは、完成物の追加書き出しに使用する出力先です。
	aiClient   gemini.GenerativeModel // aiClient はGeminiの通信に使う共通クライアント
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
	genClient  *genai.Client          // genClient は写真解析と参照付き生成に使うマルチモーダルクライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	bookCfg *domain.BookConfig,
	baseDir string,
	layout *artifact.Layout,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	genClient *genai.Client,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		BookConfig: bookCfg,
		BaseDir:    baseDir,
		Layout:     layout,
		aiClient:   aiClient,
		httpClient: httpClient,
		genClient:  genClient,
		Reader:     reader,
		Writer:     writer,
	}
}
