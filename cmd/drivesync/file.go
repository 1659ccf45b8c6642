package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/scheduler"
	"github.com/Ning0612/drivesync/internal/service"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Work with Drive files",
}

var (
	fileID       string
	fileName     string
	metadataOnly bool
)

var fileGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a file's metadata and content as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		rec, err := svc.LoadFile(cmd.Context(), fileID, fileName)
		if err != nil {
			return err
		}

		var out any = rec.File()
		if metadataOnly {
			out = rec.File().Metadata()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var fileExistsCmd = &cobra.Command{
	Use:   "exists <id>",
	Short: "Report whether a file id exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		found, err := svc.FileExists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if found {
			fmt.Println(okColor("exists"), args[0])
			return nil
		}
		fmt.Println(warnColor("missing"), args[0])
		return nil
	},
}

var fileDownloadCmd = &cobra.Command{
	Use:   "download <id> [path]",
	Short: "Stream a file's content to a local path",
	Long: `Stream a file's content to a local path. A path ending in a separator,
or whose last segment has no extension, is a directory and the file's name
is appended. Defaults to the current directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 2 {
			path = args[1]
		}

		svc, err := newService(cmd.Context(), service.WithReporter(progressReporter()))
		if err != nil {
			return err
		}
		defer svc.Close()

		meta, target, err := svc.DownloadFile(cmd.Context(), args[0], path)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s -> %s\n", okColor("downloaded"), meta.Name, target)
		return nil
	},
}

var (
	uploadMeta  domain.FileRecord
	uploadEvery time.Duration
	uploadRuns  int
)

var fileUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Create or update a Drive file from a local file",
	Long: `Create or update a Drive file from a local file. With --id the file is
updated when that id exists and created otherwise. With --every the upload
repeats on that interval until interrupted or --runs is reached.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		if uploadEvery > 0 {
			fmt.Printf("Uploading %s every %s %s\n", args[0], uploadEvery, dimColor("(Ctrl+C to stop)"))
			status, err := svc.WatchUpload(cmd.Context(), args[0], uploadMeta, scheduler.Config{
				Interval:  uploadEvery,
				Immediate: true,
				MaxRuns:   uploadRuns,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d runs, %s ok, %s failed\n", status.TotalRuns,
				okColor(status.SuccessfulRuns), errColor(status.FailedRuns))
			if status.LastError != "" {
				fmt.Println(dimColor("last error: " + status.LastError))
			}
			return nil
		}

		rec, action, err := svc.UploadFile(cmd.Context(), args[0], uploadMeta)
		if err != nil {
			return err
		}
		f := rec.File()
		fmt.Printf("%s %s (%s, %s)\n", okColor(string(action)), f.Name, f.ID,
			humanize.IBytes(uint64(len(f.Content))))
		if f.WebViewLink != "" {
			fmt.Println(dimColor(f.WebViewLink))
		}
		return nil
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a Drive file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.DeleteFile(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(okColor("deleted"), args[0])
		return nil
	},
}

var savePart string

var fileSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Load a file and save it locally as JSON, metadata or raw content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		rec, err := svc.LoadFile(cmd.Context(), fileID, fileName)
		if err != nil {
			return err
		}

		var target string
		switch savePart {
		case "all":
			target, err = rec.SaveLocal(path)
		case "metadata":
			target, err = rec.SaveMetadataLocal(path)
		case "content":
			target, err = rec.SaveContentLocal(path)
		default:
			return fmt.Errorf("unknown --part %q (want all, metadata or content)", savePart)
		}
		if err != nil {
			return err
		}
		fmt.Println(okColor("saved"), target)
		return nil
	},
}

func addLookupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fileID, "id", "", "file id")
	cmd.Flags().StringVar(&fileName, "name", "", "unique file name, used when --id is not set")
	cmd.MarkFlagsOneRequired("id", "name")
}

func init() {
	addLookupFlags(fileGetCmd)
	fileGetCmd.Flags().BoolVar(&metadataOnly, "metadata", false, "omit the content")

	addLookupFlags(fileSaveCmd)
	fileSaveCmd.Flags().StringVar(&savePart, "part", "all", "what to save: all, metadata or content")

	f := fileUploadCmd.Flags()
	f.StringVar(&uploadMeta.ID, "id", "", "update this file when it exists")
	f.StringVar(&uploadMeta.Name, "name", "", "remote name (default: the local file name)")
	f.StringVar(&uploadMeta.Parent, "parent", "", "parent folder id (default: drive.default_parent)")
	f.StringVar(&uploadMeta.MimeType, "mime-type", "", "mime type (default: from the extension)")
	f.StringVar(&uploadMeta.Description, "description", "", "file description")
	f.BoolVar(&uploadMeta.Starred, "starred", false, "star the file")
	f.DurationVar(&uploadEvery, "every", 0, "repeat the upload on this interval")
	f.IntVar(&uploadRuns, "runs", 0, "stop after this many runs with --every (0 = until interrupted)")

	fileCmd.AddCommand(fileGetCmd, fileExistsCmd, fileDownloadCmd, fileUploadCmd, fileDeleteCmd, fileSaveCmd)
}
