package main

const htmlContent = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>RecallGo</title>
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f0f0f; color: #eee; height: 100vh; display: flex; flex-direction: column; overflow: hidden; }

        .tabs { display: flex; background: #1a1a1a; border-bottom: 1px solid #333; height: 40px; align-items: flex-end; padding-left: 8px; flex-shrink: 0; }
        .tab {
            padding: 8px 16px;
            cursor: pointer;
            font-size: 13px;
            color: #888;
            background: #1a1a1a;
            border-top-left-radius: 6px;
            border-top-right-radius: 6px;
            margin-right: 2px;
            border: 1px solid transparent;
            border-bottom: none;
            transition: all 0.2s;
            user-select: none;
        }
        .tab.active {
            background: #0f0f0f;
            color: #fff;
            border-color: #333;
            border-bottom-color: #0f0f0f;
            margin-bottom: -1px;
            z-index: 10;
        }
        .tab:hover:not(.active) { background: #222; }
        .tab.disabled { pointer-events: none; opacity: 0.5; }

        .content { flex: 1; position: relative; display: flex; }
        .tab-content { display: none; width: 100%; height: 100%; }
        .tab-content.active { display: block; }

        .terminal-container {
            background: #060606;
            color: #ccc;
            font-family: 'Consolas', 'Monaco', 'Courier New', monospace;
            font-size: 12px;
            padding: 12px;
            overflow-y: auto;
            white-space: pre-wrap;
            word-wrap: break-word;
            height: 100%;
            box-sizing: border-box;
        }

        #terminal-output span.info { color: #4caf50; }
        #terminal-output span.warn { color: #ff9800; }
        #terminal-output span.err { color: #f44336; }
        #terminal-output span.sys { color: #2196f3; font-weight: bold; }

        .study { display: flex; flex-direction: column; height: 100%; box-sizing: border-box; padding: 16px; }
        .progress { font-size: 12px; color: #888; margin-bottom: 12px; }
        .card {
            flex: 1;
            background: #1a1a1a;
            border: 1px solid #333;
            border-radius: 10px;
            padding: 24px;
            font-size: 20px;
            overflow-y: auto;
            cursor: pointer;
            user-select: none;
        }
        .card .back { border-top: 1px solid #333; margin-top: 16px; padding-top: 16px; color: #9cf; }
        .answer-row { display: flex; gap: 8px; margin-top: 12px; }
        .answer-row input {
            flex: 1; background: #060606; color: #eee; border: 1px solid #333;
            border-radius: 6px; padding: 10px; font-size: 15px;
        }
        .controls { display: flex; gap: 8px; margin-top: 12px; align-items: center; }
        button {
            background: #2a2a2a; color: #eee; border: 1px solid #444; border-radius: 6px;
            padding: 10px 14px; font-size: 14px; cursor: pointer;
        }
        button:hover { background: #333; }
        input[type=range] { flex: 1; }

        .config { padding: 24px; max-width: 380px; }
        .config label { display: block; font-size: 13px; color: #aaa; margin: 16px 0 6px; }
        .config .row { display: flex; align-items: center; gap: 10px; }
        #done { display: none; text-align: center; padding: 40px; font-size: 22px; color: #4caf50; }
    </style>
</head>
<body>
    <div class="tabs">
        <div class="tab" id="tab-study" onclick="switchTab('study')">STUDY</div>
        <div class="tab active" id="tab-term" onclick="switchTab('term')">TERMINAL</div>
        <div class="tab" id="tab-config" onclick="switchTab('config')">CONFIG</div>
    </div>

    <div class="content">
        <!-- Study Tab (Card View) -->
        <div id="content-study" class="tab-content">
            <div class="study">
                <div class="progress" id="progress">-</div>
                <div class="card" id="card" onclick="flip()">
                    <div id="front"></div>
                    <div class="back" id="back" style="display:none"></div>
                </div>
                <div id="done">Session complete</div>
                <div class="answer-row">
                    <input id="answer" placeholder="Type your answer, Enter to grade"
                           onkeydown="if (event.key === 'Enter') submitAnswer()">
                    <button onclick="submitAnswer()">Grade</button>
                </div>
                <div class="controls">
                    <button onclick="flip()">Flip</button>
                    <button onclick="nextCard()">Next</button>
                    <button onclick="audioControl('pause')">&#10074;&#10074;</button>
                    <button onclick="audioControl('resume')">&#9654;</button>
                    <input type="range" id="volume" min="0" max="100" value="100" onchange="setVolume(this.value)">
                </div>
            </div>
        </div>

        <!-- Terminal Tab -->
        <div id="content-term" class="tab-content active">
            <div id="terminal-output" class="terminal-container"></div>
        </div>

        <!-- Config Tab (Settings) -->
        <div id="content-config" class="tab-content">
            <div class="config">
                <label><input type="checkbox" id="cfg-autoplay" onchange="saveConfig()"> Autoplay narration</label>
                <label>Delay after narration (seconds)</label>
                <div class="row">
                    <input type="range" id="cfg-delay" min="0" max="10" step="0.5" onchange="saveConfig()">
                    <span id="cfg-delay-value">-</span>
                </div>
            </div>
        </div>
    </div>

    <script>
        const output = document.getElementById('terminal-output');
        const tabTerm = document.getElementById('tab-term');
        let apiBase = null;

        function switchTab(id) {
            document.querySelectorAll('.tab').forEach(t => t.classList.remove('active'));
            document.querySelectorAll('.tab-content').forEach(c => c.classList.remove('active'));

            document.getElementById('tab-' + id).classList.add('active');
            document.getElementById('content-' + id).classList.add('active');
        }

        function appendLog(text) {
            const line = document.createElement('div');
            // Basic highlighting
            if (text.includes('INFO')) line.innerHTML = '<span class="info">' + text + '</span>';
            else if (text.includes('WARN')) line.innerHTML = '<span class="warn">' + text + '</span>';
            else if (text.includes('ERROR') || text.includes('FAIL')) line.innerHTML = '<span class="err">' + text + '</span>';
            else if (text.startsWith('>')) line.innerHTML = '<span class="sys">' + text + '</span>';
            else line.innerText = text;

            output.appendChild(line);
            output.scrollTop = output.scrollHeight;
        }

        async function api(method, path, body) {
            const opts = { method: method };
            if (body !== undefined) {
                opts.headers = { 'Content-Type': 'application/json' };
                opts.body = JSON.stringify(body);
            }
            const resp = await fetch(apiBase + path, opts);
            if (!resp.ok) throw new Error(path + ': ' + resp.status);
            return resp.json();
        }

        async function refresh() {
            try {
                const status = await api('GET', '/api/session/status');
                document.getElementById('progress').innerText =
                    'Card ' + (status.index + 1) + ' / ' + status.total + ' - Score ' + status.score;
                if (status.ended) {
                    document.getElementById('card').style.display = 'none';
                    document.getElementById('done').style.display = 'block';
                    return;
                }
                const card = await api('GET', '/api/session/card');
                document.getElementById('front').innerHTML = card.front_html;
                const back = document.getElementById('back');
                back.style.display = card.flipped ? 'block' : 'none';
                back.innerHTML = card.back_html || '';
            } catch (e) {
                appendLog('> UI refresh failed: ' + e.message);
            }
        }

        async function flip() {
            try { await api('POST', '/api/intent/flip'); await refresh(); } catch (e) {}
        }

        async function nextCard() {
            try { await api('POST', '/api/intent/next'); await refresh(); } catch (e) {}
        }

        async function submitAnswer() {
            const field = document.getElementById('answer');
            if (!field.value) return;
            try {
                await api('POST', '/api/intent/answer', { answer: field.value });
                field.value = '';
                await refresh();
            } catch (e) {
                appendLog('> Answer failed: ' + e.message);
            }
        }

        async function audioControl(action) {
            try { await api('POST', '/api/audio/control', { action: action }); } catch (e) {}
        }

        async function setVolume(percent) {
            try { await api('POST', '/api/audio/volume', { volume: percent / 100 }); } catch (e) {}
        }

        async function loadConfig() {
            try {
                const cfg = await api('GET', '/api/config');
                document.getElementById('cfg-autoplay').checked = cfg.autoplay_enabled;
                document.getElementById('cfg-delay').value = cfg.autoplay_delay_seconds;
                document.getElementById('cfg-delay-value').innerText = cfg.autoplay_delay_seconds + 's';
                document.getElementById('volume').value = Math.round(cfg.volume * 100);
            } catch (e) {}
        }

        async function saveConfig() {
            const delay = parseFloat(document.getElementById('cfg-delay').value);
            document.getElementById('cfg-delay-value').innerText = delay + 's';
            try {
                await api('PUT', '/api/config', {
                    autoplay_enabled: document.getElementById('cfg-autoplay').checked,
                    autoplay_delay_seconds: delay
                });
            } catch (e) {
                appendLog('> Config save failed: ' + e.message);
            }
        }

        function connectEvents() {
            const ws = new WebSocket(apiBase.replace('http', 'ws') + '/api/events');
            ws.onmessage = function(msg) {
                const ev = JSON.parse(msg.data);
                if (ev.type === 'card_flipped' || ev.type === 'stats_updated') refresh();
                if (ev.type === 'session_complete') refresh();
            };
            ws.onclose = function() { setTimeout(connectEvents, 2000); };
        }

        // Exposed to Go
        window.setTerminalTitle = function(name) {
            tabTerm.innerText = name.toUpperCase();
        };

        window.enableApp = function(url) {
            apiBase = url;
            refresh();
            loadConfig();
            connectEvents();

            // Auto switch if currently viewing startup logs
            switchTab('study');
        };

        window.addLogLine = function(line) {
            appendLog(line);
        };

        // Disable Context Menu and Refresh Shortcuts
        document.addEventListener('contextmenu', event => event.preventDefault());
        document.addEventListener('keydown', function(event) {
            if (event.key === 'F5' || (event.ctrlKey && event.key === 'r')) {
                event.preventDefault();
            }
        });
    </script>
</body>
</html>
`
