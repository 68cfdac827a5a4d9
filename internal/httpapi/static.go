package httpapi

import "embed"

//go:embed static
var staticFS embed.FS

var indexHTML = []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ttywebd</title>
</head>
<body>
<h1>ttywebd</h1>
<p>Connect a WebSocket client to <code>/ws</code> (optionally
<code>/ws?sid=&lt;id&gt;</code> to reattach to an existing session).</p>
<p>Frames are a single command byte followed by a payload:</p>
<ul>
<li><code>0x00</code> output (server&rarr;client) / input (client&rarr;server)</li>
<li><code>0x01</code> resize: client&rarr;server, payload is rows (uint16 BE) then cols (uint16 BE)</li>
<li><code>0x10</code> session id: server&rarr;client, sent once on attach</li>
<li><code>0x11</code> scrollback: server&rarr;client, sent once on attach after the session id</li>
<li><code>0x12</code> shell exit: server&rarr;client, sent at most once, never followed by another frame</li>
</ul>
</body>
</html>
`)
